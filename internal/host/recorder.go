package host

import (
	"context"

	"github.com/tejusbharadwaj/energosync/internal/database"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

// Recorder writes every published state to the state history.
type Recorder struct {
	repo database.StateRepository
}

func NewRecorder(repo database.StateRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) PublishDiscovery(context.Context, Discovery) error { return nil }

func (r *Recorder) PublishState(ctx context.Context, _ Discovery, state models.EntityState) error {
	return r.repo.InsertState(ctx, state)
}

func (r *Recorder) PublishRemoval(context.Context, Discovery) error { return nil }

func (r *Recorder) Close() error {
	return r.repo.Close()
}

var _ Publisher = (*Recorder)(nil)
