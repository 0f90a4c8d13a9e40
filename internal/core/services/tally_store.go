package services

import (
	"fmt"
	"sync"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type tallyStore struct {
	mu      sync.RWMutex
	options []domain.Option
	valid   map[domain.Option]struct{}
	tally   domain.Tally
	// An empty Option means the identity is known but has not voted.
	records map[domain.Identity]domain.Option
}

func NewTallyStore(options []domain.Option) (ports.TallyStore, error) {
	if len(options) == 0 {
		return nil, domain.ErrNoOptions
	}

	valid := make(map[domain.Option]struct{}, len(options))
	for _, opt := range options {
		if opt == "" {
			return nil, domain.ErrEmptyOption
		}
		if _, ok := valid[opt]; ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateOption, opt)
		}
		valid[opt] = struct{}{}
	}

	return &tallyStore{
		options: append([]domain.Option(nil), options...),
		valid:   valid,
		tally:   domain.NewTally(options),
		records: make(map[domain.Identity]domain.Option),
	}, nil
}

func (s *tallyStore) Options() []domain.Option {
	return append([]domain.Option(nil), s.options...)
}

func (s *tallyStore) Register(identity domain.Identity) {
	if identity == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[identity]; !ok {
		s.records[identity] = ""
	}
}

func (s *tallyStore) CurrentTally() domain.Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally.Clone()
}

func (s *tallyStore) VoteStatus(identity domain.Identity) (domain.Option, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	choice := s.records[identity]
	return choice, choice != ""
}

func (s *tallyStore) Snapshot(identity domain.Identity) domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{
		Options: append([]domain.Option(nil), s.options...),
		Votes:   s.tally.Clone(),
		Choice:  s.records[identity],
	}
}

func (s *tallyStore) AcceptVote(identity domain.Identity, option domain.Option) error {
	if identity == "" {
		return domain.ErrEmptyIdentity
	}
	if _, ok := s.valid[option]; !ok {
		return domain.ErrInvalidOption
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[identity] != "" {
		return domain.ErrAlreadyVoted
	}
	s.tally[option]++
	s.records[identity] = option
	return nil
}

func (s *tallyStore) Stats() ports.TallyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ports.TallyStats{
		Voters: len(s.records),
		Total:  s.tally.Total(),
	}
	for _, choice := range s.records {
		if choice != "" {
			stats.Votes++
		}
	}
	return stats
}
