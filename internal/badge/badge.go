// Package badge renders a small PNG status badge for a city's latest AQI,
// suitable for embedding in dashboards and README files.
package badge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/airwatch-io/airwatch/internal/aqi"
)

const (
	charWidth  = 7 // basicfont.Face7x13 glyph advance
	lineHeight = 13
	padX       = 10
	padY       = 8
)

var levelColors = map[string]color.RGBA{
	aqi.LevelGood:      {0x2e, 0x8b, 0x57, 0xff},
	aqi.LevelModerate:  {0xd4, 0xa0, 0x17, 0xff},
	aqi.LevelUnhealthy: {0xc0, 0x45, 0x2c, 0xff},
	aqi.LevelHazardous: {0x7e, 0x1e, 0x3f, 0xff},
}

// Render draws a two-line badge (city, then AQI value and level) on a
// background colored by severity and returns it PNG-encoded.
func Render(city string, aqiValue float64, level string) ([]byte, error) {
	bg, ok := levelColors[level]
	if !ok {
		return nil, fmt.Errorf("unknown AQI level %q", level)
	}

	line1 := city
	line2 := fmt.Sprintf("AQI %.0f %s", aqiValue, level)

	width := maxLen(line1, line2)*charWidth + 2*padX
	height := 2*lineHeight + 2*padY + lineHeight/2

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	drawText(img, line1, padX, padY+lineHeight)
	drawText(img, line2, padX, padY+2*lineHeight+lineHeight/2)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode badge png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func maxLen(lines ...string) int {
	longest := 0
	for _, l := range lines {
		if len(l) > longest {
			longest = len(l)
		}
	}
	return longest
}
