package timeline

import (
	"context"

	"go-cats/internal/features/audit"
)

type TimelineService interface {
	Record(ctx context.Context, entry *Entry) error
	ListForCase(ctx context.Context, caseID string) ([]Entry, error)
}

type TimelineServiceImpl struct {
	Repo TimelineRepository
}

func NewTimelineService(repo TimelineRepository) TimelineService {
	return &TimelineServiceImpl{Repo: repo}
}

// Record appends entry. The actor defaults to the authenticated user, or the system for automated entries.
func (s *TimelineServiceImpl) Record(ctx context.Context, entry *Entry) error {
	if entry.ActorID == "" {
		entry.ActorID = audit.ActorFromContext(ctx)
	}
	return s.Repo.Create(ctx, entry)
}

func (s *TimelineServiceImpl) ListForCase(ctx context.Context, caseID string) ([]Entry, error) {
	entries, err := s.Repo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
