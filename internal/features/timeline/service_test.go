package timeline

import (
	"context"
	"testing"

	"go-cats/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTimelineRepo struct {
	entries []Entry
}

func (r *memoryTimelineRepo) Create(ctx context.Context, entry *Entry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryTimelineRepo) ListByCase(ctx context.Context, caseID string) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryTimelineRepo) EnsureIndexes(ctx context.Context) error { return nil }

func TestRecordFillsActor(t *testing.T) {
	repo := &memoryTimelineRepo{}
	svc := NewTimelineService(repo)

	userCtx := context.WithValue(context.Background(), utils.UserClaimsKey, &utils.UserClaims{UserID: "io-17"})
	require.NoError(t, svc.Record(userCtx, &Entry{CaseID: "c1", Type: EntryStatusChanged}))
	require.NoError(t, svc.Record(context.Background(), &Entry{CaseID: "c1", Type: EntrySLABreached, IsAutomated: true}))
	require.NoError(t, svc.Record(context.Background(), &Entry{CaseID: "c1", Type: EntryReassigned, ActorID: "sp-2"}))

	require.Len(t, repo.entries, 3)
	assert.Equal(t, "io-17", repo.entries[0].ActorID)
	assert.Equal(t, "system", repo.entries[1].ActorID)
	assert.Equal(t, "sp-2", repo.entries[2].ActorID)
}

func TestListForCaseNeverNil(t *testing.T) {
	svc := NewTimelineService(&memoryTimelineRepo{})

	entries, err := svc.ListForCase(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
