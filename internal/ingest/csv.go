package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Submission faults. Every fault rejects the whole upload; no row from a bad
// batch is ever persisted.
var (
	ErrInvalidFile    = errors.New("file is not parseable CSV")
	ErrMissingColumns = errors.New("missing required columns: date, city, PM2.5, NO2, CO2")
	ErrEmptyCity      = errors.New("city must not be empty")
	ErrInvalidValue   = errors.New("invalid field value")
	ErrPersistence    = errors.New("failed to persist measurements")
)

// Required header names, case-exact. Extra columns are ignored and column
// order is irrelevant.
const (
	colDate = "date"
	colCity = "city"
	colPM25 = "PM2.5"
	colNO2  = "NO2"
	colCO2  = "CO2"
)

const (
	dateLayout = "2006-01-02"
	maxCityLen = 100
)

// Row is one validated input line, before AQI computation.
type Row struct {
	Date time.Time
	City string
	PM25 float64
	NO2  float64
	CO2  float64
}

// ParseCSV decodes an uploaded byte buffer into validated rows, preserving
// input order. A header-only file is valid and yields no rows. Validation is
// all-or-nothing: one malformed line fails the whole submission, so a caller
// is never told success while part of their data was dropped.
func ParseCSV(content []byte) ([]Row, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidFile)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalidFile)
	}

	r := csv.NewReader(bytes.NewReader(content))

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	cols, err := requiredColumnIndexes(header)
	if err != nil {
		return nil, err
	}

	var parsed []Row
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidFile, line, err)
		}

		row, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		parsed = append(parsed, row)
	}

	return parsed, nil
}

// columnIndexes maps each required column to its position in the header.
type columnIndexes struct {
	date, city, pm25, no2, co2 int
}

func requiredColumnIndexes(header []string) (columnIndexes, error) {
	// First occurrence wins when a header name is duplicated.
	pos := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := pos[name]; !ok {
			pos[name] = i
		}
	}

	var cols columnIndexes
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{colDate, &cols.date},
		{colCity, &cols.city},
		{colPM25, &cols.pm25},
		{colNO2, &cols.no2},
		{colCO2, &cols.co2},
	} {
		i, ok := pos[c.name]
		if !ok {
			return columnIndexes{}, ErrMissingColumns
		}
		*c.dst = i
	}
	return cols, nil
}

func parseRecord(record []string, cols columnIndexes) (Row, error) {
	city := strings.TrimSpace(record[cols.city])
	if city == "" {
		return Row{}, ErrEmptyCity
	}
	if utf8.RuneCountInString(city) > maxCityLen {
		return Row{}, fmt.Errorf("%w: city longer than %d characters", ErrInvalidValue, maxCityLen)
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(record[cols.date]))
	if err != nil {
		return Row{}, fmt.Errorf("%w: date %q", ErrInvalidValue, record[cols.date])
	}

	row := Row{Date: date.UTC(), City: city}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{colPM25, record[cols.pm25], &row.PM25},
		{colNO2, record[cols.no2], &row.NO2},
		{colCO2, record[cols.co2], &row.CO2},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return Row{}, fmt.Errorf("%w: %s %q", ErrInvalidValue, f.name, f.raw)
		}
		*f.dst = v
	}

	return row, nil
}
