// Package api is the thin HTTP surface over the stats queries and the
// event publish path.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

const dayFormat = "2006-01-02"

// StatsReader is the read-only query surface the API exposes.
type StatsReader interface {
	TopForDay(ctx context.Context, day time.Time, limit int) ([]*models.DailyQueryStat, error)
	TopInRange(ctx context.Context, from, to time.Time, limit int) ([]*models.DailyQueryStat, error)
}

// EventPublisher accepts a payload and produces it to the main topic.
type EventPublisher interface {
	Send(ctx context.Context, payload *models.SearchEventPayload) (*models.SearchEventPayload, error)
}

// Handler maps HTTP requests onto the stats and producer services.
type Handler struct {
	stats    StatsReader
	producer EventPublisher
	log      *logging.Logger
}

// NewHandler creates the API handler.
func NewHandler(statsService StatsReader, producerService EventPublisher, log *logging.Logger) *Handler {
	return &Handler{
		stats:    statsService,
		producer: producerService,
		log:      log.WithComponent("api"),
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats/daily", h.DailyStats)
	mux.HandleFunc("GET /api/stats/range", h.RangeStats)
	mux.HandleFunc("POST /api/search-events", h.PublishEvent)
	mux.HandleFunc("GET /healthz", h.Health)
}

// DailyStatResponse is the wire form of one stat row. Day and ID are
// omitted on rows aggregated across multiple days.
type DailyStatResponse struct {
	ID    int64  `json:"id,omitempty"`
	Day   string `json:"day,omitempty"`
	Query string `json:"query"`
	Count int64  `json:"count"`
}

func toResponse(rows []*models.DailyQueryStat) []DailyStatResponse {
	out := make([]DailyStatResponse, 0, len(rows))
	for _, row := range rows {
		resp := DailyStatResponse{ID: row.ID, Query: row.Query, Count: row.Count}
		if !row.Day.IsZero() {
			resp.Day = row.Day.Format(dayFormat)
		}
		out = append(out, resp)
	}
	return out
}

// DailyStats handles GET /api/stats/daily?day=YYYY-MM-DD&limit=N.
func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse(dayFormat, r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be formatted YYYY-MM-DD")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	rows, err := h.stats.TopForDay(r.Context(), day, limit)
	if err != nil {
		h.log.Error("daily stats query failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rows))
}

// RangeStats handles GET /api/stats/range?from=...&to=...&limit=N.
func (h *Handler) RangeStats(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(dayFormat, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be formatted YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dayFormat, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be formatted YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	rows, err := h.stats.TopInRange(r.Context(), from, to, limit)
	if err != nil {
		h.log.Error("range stats query failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rows))
}

// PublishEvent handles POST /api/search-events. The payload is enriched
// and produced to the main topic; ingestion happens asynchronously.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var payload models.SearchEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sent, err := h.producer.Send(r.Context(), &payload)
	if err != nil {
		h.log.Error("event publish failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "failed to publish event")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "ACCEPTED",
		"eventId":    sent.EventID,
		"occurredAt": sent.OccurredAt,
		"sentAt":     sent.SentAt,
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
