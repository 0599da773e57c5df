package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/airwatch-io/airwatch/internal/models"
)

// ErrInvalidRange is returned by History when start is after end. The HTTP
// layer validates the range first; this is a defensive contract check.
var ErrInvalidRange = errors.New("start date after end date")

// Store persists measurements in SQLite and answers aggregate queries.
// The alert threshold is fixed at construction and never changes for the
// lifetime of the process.
type Store struct {
	db             *sql.DB
	alertThreshold float64
}

func New(db *sql.DB, alertThreshold float64) *Store {
	return &Store{db: db, alertThreshold: alertThreshold}
}

// AlertThreshold returns the configured alert cutoff.
func (s *Store) AlertThreshold() float64 {
	return s.alertThreshold
}

const measurementCols = `id, date, city, pm25, no2, co2, aqi, aqi_level, created_at`

// InsertMeasurements writes a batch in a single transaction. Either every
// measurement is durably persisted or none are; any failure rolls the whole
// batch back before returning.
func (s *Store) InsertMeasurements(ctx context.Context, ms []models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO measurements (date, city, pm25, no2, co2, aqi, aqi_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx, m.Date, m.City, m.PM25, m.NO2, m.CO2, m.AQI, m.AQILevel); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListAlerts returns every measurement whose AQI is strictly above the alert
// threshold, across all cities and dates.
func (s *Store) ListAlerts() ([]models.Measurement, error) {
	rows, err := s.db.Query(`
		SELECT `+measurementCols+`
		FROM measurements
		WHERE aqi > ?
		ORDER BY date ASC, id ASC
	`, s.alertThreshold)
	if err != nil {
		return nil, err
	}
	return scanMeasurements(rows)
}

// ListAlertsByCity narrows ListAlerts to an exact city match. An unknown city
// yields an empty slice, not an error.
func (s *Store) ListAlertsByCity(city string) ([]models.Measurement, error) {
	rows, err := s.db.Query(`
		SELECT `+measurementCols+`
		FROM measurements
		WHERE aqi > ? AND city = ?
		ORDER BY date ASC, id ASC
	`, s.alertThreshold, city)
	if err != nil {
		return nil, err
	}
	return scanMeasurements(rows)
}

// ListByCity returns all measurements for a city. Callers decide whether an
// empty result means "city unknown".
func (s *Store) ListByCity(city string) ([]models.Measurement, error) {
	rows, err := s.db.Query(`
		SELECT `+measurementCols+`
		FROM measurements
		WHERE city = ?
		ORDER BY date ASC, id ASC
	`, city)
	if err != nil {
		return nil, err
	}
	return scanMeasurements(rows)
}

// AverageAQI returns the mean AQI for a city. The second return is false
// when the city has no measurements at all.
func (s *Store) AverageAQI(city string) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRow(`SELECT AVG(aqi) FROM measurements WHERE city = ?`, city).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// BestCities ranks cities by mean AQI ascending (lower is cleaner air),
// breaking ties by city name, truncated to limit entries.
func (s *Store) BestCities(limit int) ([]models.CityAverage, error) {
	rows, err := s.db.Query(`
		SELECT city, AVG(aqi) AS average_aqi
		FROM measurements
		GROUP BY city
		ORDER BY average_aqi ASC, city ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranking []models.CityAverage
	for rows.Next() {
		var ca models.CityAverage
		if err := rows.Scan(&ca.City, &ca.AverageAQI); err != nil {
			return nil, err
		}
		ranking = append(ranking, ca)
	}
	return ranking, rows.Err()
}

// History returns all measurements with date in [start, end] inclusive.
func (s *Store) History(start, end time.Time) ([]models.Measurement, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	rows, err := s.db.Query(`
		SELECT `+measurementCols+`
		FROM measurements
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, id ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	return scanMeasurements(rows)
}

// LatestByCity returns the most recent measurement for a city, or nil when
// the city has none.
func (s *Store) LatestByCity(city string) (*models.Measurement, error) {
	row := s.db.QueryRow(`
		SELECT `+measurementCols+`
		FROM measurements
		WHERE city = ?
		ORDER BY date DESC, id DESC
		LIMIT 1
	`, city)

	var m models.Measurement
	err := row.Scan(&m.ID, &m.Date, &m.City, &m.PM25, &m.NO2, &m.CO2, &m.AQI, &m.AQILevel, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMeasurements returns the total number of stored measurements.
func (s *Store) CountMeasurements() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM measurements`).Scan(&n)
	return n, err
}

func scanMeasurements(rows *sql.Rows) ([]models.Measurement, error) {
	defer rows.Close()

	var measurements []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.ID, &m.Date, &m.City, &m.PM25, &m.NO2, &m.CO2, &m.AQI, &m.AQILevel, &m.CreatedAt); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}
