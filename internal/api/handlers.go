package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/airwatch-io/airwatch/internal/badge"
	"github.com/airwatch-io/airwatch/internal/ingest"
	"github.com/airwatch-io/airwatch/internal/models"
	"github.com/airwatch-io/airwatch/internal/store"
)

const defaultBestCitiesLimit = 3

// maxUploadBytes caps a single CSV submission at 32 MiB.
const maxUploadBytes = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	content, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := s.pipeline.Ingest(r.Context(), content)
	if err != nil {
		if errors.Is(err, ingest.ErrPersistence) {
			log.Printf("upload: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to persist measurements")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"rows": count})
}

// readUpload accepts either a multipart form with a "file" part or a raw CSV
// request body.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("multipart upload missing file field")
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(alerts))
}

func (s *Server) handleAlertsByCity(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlertsByCity(r.PathValue("city"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(alerts))
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	measurements, err := s.store.ListByCity(r.PathValue("city"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(measurements) == 0 {
		writeError(w, http.StatusNotFound, "unknown city")
		return
	}
	writeJSON(w, http.StatusOK, measurements)
}

func (s *Server) handleCityAverage(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	avg, ok, err := s.store.AverageAQI(city)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no measurements found for this city")
		return
	}
	writeJSON(w, http.StatusOK, models.CityAverage{City: city, AverageAQI: avg})
}

func (s *Server) handleBestCities(w http.ResponseWriter, r *http.Request) {
	limit := defaultBestCitiesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ranking, err := s.store.BestCities(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ranking == nil {
		ranking = []models.CityAverage{}
	}
	writeJSON(w, http.StatusOK, ranking)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if start.After(end) {
		writeError(w, http.StatusBadRequest, "start must be <= end")
		return
	}

	measurements, err := s.store.History(start, end)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(measurements))
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city parameter required")
		return
	}

	latest, err := s.store.LatestByCity(city)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "unknown city")
		return
	}

	img, err := badge.Render(latest.City, latest.AQI, latest.AQILevel)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=300")
	w.Write(img)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountMeasurements()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"measurements": count,
	})
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, errors.New(name + " parameter required (YYYY-MM-DD)")
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be a date in YYYY-MM-DD form")
	}
	return t.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil(ms []models.Measurement) []models.Measurement {
	if ms == nil {
		return []models.Measurement{}
	}
	return ms
}
