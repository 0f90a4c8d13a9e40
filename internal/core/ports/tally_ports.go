package ports

import "github.com/vncsmyrnk/livepoll/internal/core/domain"

type TallyStats struct {
	Voters int
	Votes  int
	Total  int64
}

type TallyStore interface {
	Options() []domain.Option
	Register(identity domain.Identity)
	CurrentTally() domain.Tally
	VoteStatus(identity domain.Identity) (domain.Option, bool)
	Snapshot(identity domain.Identity) domain.Snapshot
	AcceptVote(identity domain.Identity, option domain.Option) error
	Stats() TallyStats
}
