package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/airwatch-io/airwatch/internal/aqi"
	"github.com/airwatch-io/airwatch/internal/metrics"
	"github.com/airwatch-io/airwatch/internal/models"
	"github.com/airwatch-io/airwatch/internal/store"
)

// AlertPublisher receives measurements that crossed the alert threshold after
// a batch has been durably committed.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, ms []models.Measurement) error
}

// Pipeline turns an uploaded CSV buffer into persisted measurements as one
// unit of work: parse, compute AQI per row, commit atomically.
type Pipeline struct {
	store     *store.Store
	publisher AlertPublisher // nil disables alert publication
}

func NewPipeline(st *store.Store, publisher AlertPublisher) *Pipeline {
	return &Pipeline{store: st, publisher: publisher}
}

// Ingest validates and persists one submission, returning the number of rows
// inserted. Parser faults propagate unchanged; a store failure surfaces as
// ErrPersistence with the batch fully rolled back, so retrying the whole
// submission is always safe.
func (p *Pipeline) Ingest(ctx context.Context, content []byte) (int, error) {
	rows, err := ParseCSV(content)
	if err != nil {
		metrics.IngestFailures.WithLabelValues(failureReason(err)).Inc()
		return 0, err
	}

	threshold := p.store.AlertThreshold()
	measurements := make([]models.Measurement, 0, len(rows))
	var alerts []models.Measurement
	for i, row := range rows {
		if row.PM25 < 0 || row.NO2 < 0 || row.CO2 < 0 {
			metrics.IngestFailures.WithLabelValues("invalid_value").Inc()
			return 0, fmt.Errorf("row %d: %w: negative pollutant reading", i+1, ErrInvalidValue)
		}

		res := aqi.Evaluate(row.PM25, row.NO2, row.CO2, threshold)
		m := models.Measurement{
			Date:     row.Date,
			City:     row.City,
			PM25:     row.PM25,
			NO2:      row.NO2,
			CO2:      row.CO2,
			AQI:      res.AQI,
			AQILevel: res.Level,
		}
		measurements = append(measurements, m)
		if res.IsAlert {
			alerts = append(alerts, m)
		}
	}

	if err := p.commit(ctx, measurements); err != nil {
		metrics.IngestFailures.WithLabelValues("persistence").Inc()
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.RowsIngested.Add(float64(len(measurements)))

	if p.publisher != nil && len(alerts) > 0 {
		// The batch is already durable; alert delivery is advisory and must
		// not turn a committed ingest into a reported failure.
		if err := p.publisher.PublishAlerts(ctx, alerts); err != nil {
			log.Printf("ingest: publish %d alerts: %v", len(alerts), err)
		} else {
			metrics.AlertsPublished.Add(float64(len(alerts)))
		}
	}

	return len(measurements), nil
}

// commit retries transient lock contention; anything else fails immediately.
func (p *Pipeline) commit(ctx context.Context, ms []models.Measurement) error {
	operation := func() error {
		err := p.store.InsertMeasurements(ctx, ms)
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingColumns):
		return "missing_columns"
	case errors.Is(err, ErrEmptyCity):
		return "empty_city"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	default:
		return "invalid_file"
	}
}
