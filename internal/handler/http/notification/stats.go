package notification

import (
	"errors"
	"net/http"
	"time"

	"learnloop/internal/domain/entity"
	"learnloop/internal/handler/http/respond"
	"learnloop/internal/repository"
	"learnloop/internal/usecase/stats"
)

type statsResponse struct {
	Total      int64                       `json:"total"`
	ByStatus   map[string]int64            `json:"by_status"`
	Engagement map[string]map[string]int64 `json:"engagement,omitempty"`
}

// StatsHandler reports per-status and engagement counts. Admin-only.
type StatsHandler struct{ Agg *stats.Aggregator }

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filters, err := parseStatsFilters(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := h.Agg.Summarize(r.Context(), filters)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := statsResponse{
		Total:    summary.Total,
		ByStatus: make(map[string]int64, len(summary.ByStatus)),
	}
	for status, count := range summary.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	if len(summary.Engagement) > 0 {
		resp.Engagement = make(map[string]map[string]int64, len(summary.Engagement))
		for channel, counts := range summary.Engagement {
			byType := make(map[string]int64, len(counts))
			for t, count := range counts {
				byType[string(t)] = count
			}
			resp.Engagement[string(channel)] = byType
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}

func parseStatsFilters(r *http.Request) (repository.StatsFilters, error) {
	var filters repository.StatsFilters
	q := r.URL.Query()

	filters.UserID = q.Get("user_id")
	if c := q.Get("category"); c != "" {
		category := entity.Category(c)
		if !category.Valid() {
			return filters, errors.New("category is invalid")
		}
		filters.Category = &category
	}
	if c := q.Get("channel"); c != "" {
		channel := entity.Channel(c)
		if !channel.Valid() {
			return filters, errors.New("channel is invalid")
		}
		filters.Channel = &channel
	}
	if f := q.Get("from"); f != "" {
		t, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return filters, errors.New("from must be in RFC3339 format")
		}
		filters.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filters, errors.New("to must be in RFC3339 format")
		}
		filters.To = &t
	}
	return filters, nil
}
