package models

import "time"

// Measurement is one persisted air-quality observation. AQI and AQILevel are
// derived from the pollutant readings at ingestion time, never supplied by
// the client, and a measurement is immutable once stored.
type Measurement struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	City      string    `json:"city"`
	PM25      float64   `json:"pm25"`
	NO2       float64   `json:"no2"`
	CO2       float64   `json:"co2"`
	AQI       float64   `json:"aqi"`
	AQILevel  string    `json:"aqi_level"`
	CreatedAt time.Time `json:"created_at"`
}

// CityAverage is one entry in a best-cities ranking.
type CityAverage struct {
	City       string  `json:"city"`
	AverageAQI float64 `json:"average_aqi"`
}
