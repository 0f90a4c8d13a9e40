package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type sessionResolver interface {
	Resolve(r *http.Request) (domain.Identity, error)
}

type VoteHandler struct {
	service  ports.VoteService
	sessions sessionResolver
}

func NewVoteHandler(service ports.VoteService, sessions sessionResolver) *VoteHandler {
	return &VoteHandler{
		service:  service,
		sessions: sessions,
	}
}

type voteRequest struct {
	Option domain.Option `json:"option"`
}

// VoteOnPoll is the HTTP equivalent of a "vote" frame. A repeat vote is
// answered exactly like an accepted one.
func (h *VoteHandler) VoteOnPoll(w http.ResponseWriter, r *http.Request) {
	identity, err := h.sessions.Resolve(r)
	if err != nil {
		http.Error(w, "Unauthorized: missing session", http.StatusUnauthorized)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	vote := domain.Vote{
		Identity: identity,
		Option:   req.Option,
	}

	if err := h.service.Vote(r.Context(), vote); err != nil {
		if errors.Is(err, domain.ErrInvalidOption) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !errors.Is(err, domain.ErrAlreadyVoted) {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
