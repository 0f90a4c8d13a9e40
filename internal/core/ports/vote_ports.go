package ports

import (
	"context"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type VoteService interface {
	Vote(ctx context.Context, vote domain.Vote) error
}
