package store

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/airwatch-io/airwatch/internal/models"
)

func setupTestStore(t *testing.T, threshold float64) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// A :memory: database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)

	store := New(db, threshold)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func measurement(date time.Time, city string, aqi float64) models.Measurement {
	return models.Measurement{
		Date:     date,
		City:     city,
		PM25:     1,
		NO2:      2,
		CO2:      410,
		AQI:      aqi,
		AQILevel: "Good",
	}
}

func mustInsert(t *testing.T, s *Store, ms ...models.Measurement) {
	t.Helper()
	if err := s.InsertMeasurements(context.Background(), ms); err != nil {
		t.Fatalf("InsertMeasurements: %v", err)
	}
}

func TestInsertAndListByCity(t *testing.T) {
	s := setupTestStore(t, 300)

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "Tel Aviv", 42),
		measurement(day(2024, 11, 20), "Tel Aviv", 55),
		measurement(day(2024, 11, 20), "Jerusalem", 61),
	)

	count, err := s.CountMeasurements()
	if err != nil {
		t.Fatalf("CountMeasurements: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	rows, err := s.ListByCity("Tel Aviv")
	if err != nil {
		t.Fatalf("ListByCity: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	for _, m := range rows {
		if m.City != "Tel Aviv" {
			t.Errorf("City = %q, want Tel Aviv", m.City)
		}
	}

	unknown, err := s.ListByCity("Atlantis")
	if err != nil {
		t.Fatalf("ListByCity unknown: %v", err)
	}
	if len(unknown) != 0 {
		t.Errorf("len(unknown) = %d, want 0", len(unknown))
	}
}

func TestInsertMeasurements_EmptyBatch(t *testing.T) {
	s := setupTestStore(t, 300)
	if err := s.InsertMeasurements(context.Background(), nil); err != nil {
		t.Fatalf("InsertMeasurements(nil): %v", err)
	}
}

func TestInsertMeasurements_CancelledContextPersistsNothing(t *testing.T) {
	s := setupTestStore(t, 300)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.InsertMeasurements(ctx, []models.Measurement{
		measurement(day(2024, 11, 19), "Tel Aviv", 42),
		measurement(day(2024, 11, 20), "Tel Aviv", 55),
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}

	count, err := s.CountMeasurements()
	if err != nil {
		t.Fatalf("CountMeasurements: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}

func TestListAlerts_StrictlyAboveThreshold(t *testing.T) {
	s := setupTestStore(t, 100)

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "Tel Aviv", 100), // at threshold, not an alert
		measurement(day(2024, 11, 20), "Tel Aviv", 100.5),
		measurement(day(2024, 11, 20), "Jerusalem", 99),
	)

	alerts, err := s.ListAlerts()
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len(alerts) = %d, want 1", len(alerts))
	}
	if alerts[0].AQI != 100.5 {
		t.Errorf("AQI = %v, want 100.5", alerts[0].AQI)
	}
}

func TestListAlertsByCity(t *testing.T) {
	s := setupTestStore(t, 100)

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "Tel Aviv", 150),
		measurement(day(2024, 11, 20), "Jerusalem", 150),
	)

	alerts, err := s.ListAlertsByCity("Tel Aviv")
	if err != nil {
		t.Fatalf("ListAlertsByCity: %v", err)
	}
	if len(alerts) != 1 || alerts[0].City != "Tel Aviv" {
		t.Fatalf("alerts = %+v, want one Tel Aviv row", alerts)
	}

	none, err := s.ListAlertsByCity("Atlantis")
	if err != nil {
		t.Fatalf("ListAlertsByCity unknown: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}

func TestAverageAQI(t *testing.T) {
	s := setupTestStore(t, 300)

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "Tel Aviv", 40),
		measurement(day(2024, 11, 20), "Tel Aviv", 50),
		measurement(day(2024, 11, 21), "Tel Aviv", 66),
	)

	avg, ok, err := s.AverageAQI("Tel Aviv")
	if err != nil {
		t.Fatalf("AverageAQI: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	want := (40.0 + 50.0 + 66.0) / 3.0
	if math.Abs(avg-want) > 1e-6 {
		t.Errorf("avg = %v, want %v", avg, want)
	}

	_, ok, err = s.AverageAQI("Atlantis")
	if err != nil {
		t.Fatalf("AverageAQI unknown: %v", err)
	}
	if ok {
		t.Error("ok = true for city with no measurements, want false")
	}
}

func TestBestCities(t *testing.T) {
	s := setupTestStore(t, 300)

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "BadCity", 200),
		measurement(day(2024, 11, 20), "BadCity", 220),
		measurement(day(2024, 11, 19), "GoodCity", 10),
		measurement(day(2024, 11, 20), "GoodCity", 20),
		measurement(day(2024, 11, 19), "MidCity", 90),
	)

	ranking, err := s.BestCities(3)
	if err != nil {
		t.Fatalf("BestCities: %v", err)
	}
	want := []string{"GoodCity", "MidCity", "BadCity"}
	if len(ranking) != len(want) {
		t.Fatalf("len(ranking) = %d, want %d", len(ranking), len(want))
	}
	for i, city := range want {
		if ranking[i].City != city {
			t.Errorf("ranking[%d] = %q, want %q", i, ranking[i].City, city)
		}
	}
}

func TestBestCities_TieBreakByName(t *testing.T) {
	s := setupTestStore(t, 300)

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "Zderot", 50),
		measurement(day(2024, 11, 19), "Akko", 50),
	)

	ranking, err := s.BestCities(10)
	if err != nil {
		t.Fatalf("BestCities: %v", err)
	}
	if len(ranking) != 2 || ranking[0].City != "Akko" || ranking[1].City != "Zderot" {
		t.Fatalf("ranking = %+v, want Akko before Zderot", ranking)
	}
}

func TestBestCities_LimitAndEmpty(t *testing.T) {
	s := setupTestStore(t, 300)

	ranking, err := s.BestCities(3)
	if err != nil {
		t.Fatalf("BestCities empty store: %v", err)
	}
	if len(ranking) != 0 {
		t.Fatalf("len(ranking) = %d, want 0", len(ranking))
	}

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "A", 10),
		measurement(day(2024, 11, 19), "B", 20),
		measurement(day(2024, 11, 19), "C", 30),
	)

	ranking, err = s.BestCities(2)
	if err != nil {
		t.Fatalf("BestCities: %v", err)
	}
	if len(ranking) != 2 {
		t.Fatalf("len(ranking) = %d, want 2", len(ranking))
	}
}

func TestHistory_InclusiveBounds(t *testing.T) {
	s := setupTestStore(t, 300)

	mustInsert(t, s,
		measurement(day(2024, 11, 18), "Tel Aviv", 10),
		measurement(day(2024, 11, 19), "Tel Aviv", 20),
		measurement(day(2024, 11, 20), "Tel Aviv", 30),
		measurement(day(2024, 11, 21), "Tel Aviv", 40),
	)

	rows, err := s.History(day(2024, 11, 19), day(2024, 11, 20))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if !rows[0].Date.Equal(day(2024, 11, 19)) || !rows[1].Date.Equal(day(2024, 11, 20)) {
		t.Errorf("dates = %v, %v; want 11-19 and 11-20", rows[0].Date, rows[1].Date)
	}
}

func TestHistory_InvalidRange(t *testing.T) {
	s := setupTestStore(t, 300)

	_, err := s.History(day(2024, 11, 20), day(2024, 11, 19))
	if err != ErrInvalidRange {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestLatestByCity(t *testing.T) {
	s := setupTestStore(t, 300)

	latest, err := s.LatestByCity("Tel Aviv")
	if err != nil {
		t.Fatalf("LatestByCity empty: %v", err)
	}
	if latest != nil {
		t.Fatalf("latest = %+v, want nil", latest)
	}

	mustInsert(t, s,
		measurement(day(2024, 11, 19), "Tel Aviv", 10),
		measurement(day(2024, 11, 21), "Tel Aviv", 30),
		measurement(day(2024, 11, 20), "Tel Aviv", 20),
	)

	latest, err = s.LatestByCity("Tel Aviv")
	if err != nil {
		t.Fatalf("LatestByCity: %v", err)
	}
	if latest == nil {
		t.Fatal("latest = nil, want a measurement")
	}
	if !latest.Date.Equal(day(2024, 11, 21)) {
		t.Errorf("Date = %v, want 2024-11-21", latest.Date)
	}
}
