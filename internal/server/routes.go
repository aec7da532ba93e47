package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patinahq/patina/internal/engine"
	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientReputation):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleSeedUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID               string  `json:"id"`
		Balance          float64 `json:"balance"`
		NaturalFrequency float64 `json:"natural_frequency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	user, err := s.db.SeedUser(req.ID, req.Balance, req.NaturalFrequency)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      user.ID,
		"balance": user.ReputationBalance,
	})
}

func (s *Server) handleOpenStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string  `json:"user_id"`
		ExternalRef string  `json:"external_ref"`
		Amount      float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ExternalRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and external_ref required"})
		return
	}

	// Content comes into existence on first reference. A stake on a never
	// discovered ref anchors created_at at the stake time (first write wins).
	content, err := s.db.GetContentByRef(req.ExternalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	if content == nil {
		content, err = s.db.UpsertContent(req.ExternalRef, time.Now().UnixMilli())
		if err != nil {
			writeError(w, err)
			return
		}
	}

	stake, err := s.ledger.OpenStake(req.UserID, content.ID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"stake_id":     stake.ID,
		"user_id":      stake.UserID,
		"external_ref": content.ExternalRef,
		"amount":       stake.Amount,
		"status":       stake.Status,
	})
}

func (s *Server) handleUserStakes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := s.db.GetUser(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown user"})
		return
	}

	views, err := s.engine.UserStakes(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	type stakeJSON struct {
		StakeID      string  `json:"stake_id"`
		ContentID    int64   `json:"content_id"`
		Amount       float64 `json:"amount"`
		Status       string  `json:"status"`
		Payout       float64 `json:"payout"`
		EstimatedROI float64 `json:"current_estimated_roi"`
		CreatedAt    int64   `json:"created_at"`
	}
	out := make([]stakeJSON, len(views))
	for i, v := range views {
		out[i] = stakeJSON{
			StakeID:      v.Stake.ID,
			ContentID:    v.Stake.ContentID,
			Amount:       v.Stake.Amount,
			Status:       v.Stake.Status,
			Payout:       v.Stake.Payout,
			EstimatedROI: v.EstimatedROI,
			CreatedAt:    v.Stake.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"balance": user.ReputationBalance,
		"stakes":  out,
	})
}

func (s *Server) handleDiscoverContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExternalRef string `json:"external_ref"`
		CreatedAt   int64  `json:"created_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	content, err := s.db.UpsertContent(req.ExternalRef, req.CreatedAt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"content_id":   content.ID,
		"external_ref": content.ExternalRef,
		"created_at":   content.CreatedAt,
	})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	externalRef := chi.URLParam(r, "externalRef")

	var req struct {
		Kind       string  `json:"kind"`
		Weight     float64 `json:"weight"`
		ObservedAt int64   `json:"observed_at"`
		SourceID   string  `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	content, err := s.db.GetContentByRef(externalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	if content == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown content " + externalRef})
		return
	}

	event, err := s.db.RecordInteraction(content.ID, req.Kind, req.Weight, req.ObservedAt, req.SourceID)
	if err != nil {
		// At-least-once delivery: a replayed tuple is a successful no-op,
		// not a failure.
		if errors.Is(err, store.ErrDuplicateEvent) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"event_id": event.ID,
		"status":   "recorded",
	})
}

func (s *Server) handleSlowFeed(w http.ResponseWriter, r *http.Request) {
	sinceDays := 30
	if d := r.URL.Query().Get("since_days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			sinceDays = n
		}
	}

	feed, err := s.engine.SlowFeed(sinceDays)
	if err != nil {
		writeError(w, err)
		return
	}

	type entryJSON struct {
		ExternalRef   string  `json:"external_ref"`
		QualityScore  float64 `json:"quality_score"`
		YieldedStakes int     `json:"yielded_stakes"`
		MeanROI       float64 `json:"mean_roi"`
		CreatedAt     int64   `json:"created_at"`
	}
	out := make([]entryJSON, len(feed))
	for i, e := range feed {
		out[i] = entryJSON{
			ExternalRef:   e.ExternalRef,
			QualityScore:  e.QualityScore,
			YieldedStakes: e.YieldedStakes,
			MeanROI:       e.MeanROI,
			CreatedAt:     e.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since_days": sinceDays,
		"count":      len(out),
		"entries":    out,
	})
}

func (s *Server) handleSuppress(w http.ResponseWriter, r *http.Request) {
	externalRef := r.URL.Query().Get("external_ref")
	if externalRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "external_ref required"})
		return
	}

	likes, _ := strconv.Atoi(r.URL.Query().Get("likes"))
	ageMinutes, _ := strconv.ParseFloat(r.URL.Query().Get("age_minutes"), 64)

	suppressed, err := s.engine.IsSuppressed(externalRef, likes, ageMinutes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"external_ref": externalRef,
		"suppressed":   suppressed,
	})
}

func (s *Server) handleScorePass(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.RecomputeBatch(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrPassInFlight) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"updated": report.Updated,
		"failed":  len(report.Failed),
	})
}

func (s *Server) handleReconcilePass(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Reconcile(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrPassInFlight) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settled": report.Settled,
		"yielded": report.Yielded,
		"slashed": report.Slashed,
		"neutral": report.Neutral,
		"skipped": report.Skipped,
		"failed":  len(report.Failed),
	})
}
