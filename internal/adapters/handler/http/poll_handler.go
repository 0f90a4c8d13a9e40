package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type sessionEnsurer interface {
	Ensure(w http.ResponseWriter, r *http.Request) (domain.Identity, error)
}

type PollHandler struct {
	store    ports.TallyStore
	sessions sessionEnsurer
}

func NewPollHandler(store ports.TallyStore, sessions sessionEnsurer) *PollHandler {
	return &PollHandler{
		store:    store,
		sessions: sessions,
	}
}

type pollResponse struct {
	Options  []domain.Option          `json:"options"`
	Votes    domain.Tally             `json:"votes"`
	Results  []domain.PollOptionStats `json:"results"`
	Total    int64                    `json:"total"`
	HasVoted bool                     `json:"hasVoted"`
}

func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	identity, err := h.sessions.Ensure(w, r)
	if err != nil {
		slog.Error("failed to resolve session", "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	snapshot := h.store.Snapshot(identity)
	resp := pollResponse{
		Options:  snapshot.Options,
		Votes:    snapshot.Votes,
		Results:  snapshot.Votes.Stats(snapshot.Options),
		Total:    snapshot.Votes.Total(),
		HasVoted: snapshot.HasVoted(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
