package services

import (
	"context"
	"log/slog"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type voteService struct {
	store      ports.TallyStore
	dispatcher ports.Dispatcher
	logger     *slog.Logger
}

func NewVoteService(store ports.TallyStore, dispatcher ports.Dispatcher, logger *slog.Logger) ports.VoteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &voteService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Vote records the identity's choice and, only when it was accepted, pushes
// the new tally to every live connection.
func (s *voteService) Vote(ctx context.Context, vote domain.Vote) error {
	if err := s.store.AcceptVote(vote.Identity, vote.Option); err != nil {
		return err
	}

	stats := s.store.Stats()
	s.logger.InfoContext(ctx, "vote accepted",
		"identity", vote.Identity,
		"option", vote.Option,
		"total_votes", stats.Total,
		"voters", stats.Voters,
	)
	s.dispatcher.BroadcastAll()
	return nil
}
