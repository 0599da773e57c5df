// Package alertpub publishes threshold-exceeding measurements to a Kafka
// topic so downstream consumers (notification services, dashboards) can react
// without polling the query API.
package alertpub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/airwatch-io/airwatch/internal/models"
)

type Writer struct {
	writer *kafkago.Writer
}

// NewWriter creates a Kafka producer for the alert topic.
func NewWriter(brokers []string, topic string) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w}
}

// PublishAlerts serializes and publishes the alert measurements in a single
// WriteMessages call. Messages are keyed by city so per-city ordering is
// preserved within a partition.
func (w *Writer) PublishAlerts(ctx context.Context, ms []models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(ms))
	for i := range ms {
		msg, err := serializeToMessage(ms[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(m models.Measurement) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "aqi_level", Value: []byte(m.AQILevel)},
			{Key: "date", Value: []byte(m.Date.Format(time.DateOnly))},
		},
	}, nil
}
