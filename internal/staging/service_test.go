package staging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/repository"
)

// stubStagingRepo keeps at most one record per user, like the real table.
type stubStagingRepo struct {
	records map[int64]domain.ImportInProgress
	purged  int64
}

func newStubStagingRepo() *stubStagingRepo {
	return &stubStagingRepo{records: map[int64]domain.ImportInProgress{}}
}

func (r *stubStagingRepo) Replace(ctx context.Context, iip domain.ImportInProgress) (domain.ImportInProgress, error) {
	iip.ID = uuid.New()
	r.records[iip.UserID] = iip
	return iip, nil
}

func (r *stubStagingRepo) FindByUser(ctx context.Context, userID int64) (domain.ImportInProgress, error) {
	iip, ok := r.records[userID]
	if !ok {
		return domain.ImportInProgress{}, repository.ErrNotFound
	}
	return iip, nil
}

func (r *stubStagingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	for userID, iip := range r.records {
		if iip.ID == id {
			delete(r.records, userID)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubStagingRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	for userID, iip := range r.records {
		if iip.CreatedAt.Before(cutoff) {
			delete(r.records, userID)
			purged++
		}
	}
	r.purged += purged
	return purged, nil
}

func newTestService(repo *stubStagingRepo, now time.Time) *Service {
	service := NewService(repo)
	service.now = func() time.Time { return now }
	return service
}

func TestStageReplacesPreviousUpload(t *testing.T) {
	repo := newStubStagingRepo()
	service := newTestService(repo, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := service.Stage(ctx, 1, "first.csv", []byte("Subject\nx\n"), "", ',', '"')
	if err != nil {
		t.Fatalf("stage returned error: %v", err)
	}
	second, err := service.Stage(ctx, 1, "second.csv", []byte("Subject\ny\n"), "", ',', '"')
	if err != nil {
		t.Fatalf("stage returned error: %v", err)
	}

	if len(repo.records) != 1 {
		t.Fatalf("expected one record per user, got %d", len(repo.records))
	}
	if repo.records[1].FileName != "second.csv" {
		t.Fatalf("expected the second upload kept, got %q", repo.records[1].FileName)
	}
	if first.ID == second.ID {
		t.Fatal("expected a fresh record id per staging")
	}
}

func TestStageRejectsEmptyFile(t *testing.T) {
	service := newTestService(newStubStagingRepo(), time.Now())
	if _, err := service.Stage(context.Background(), 1, "empty.csv", nil, "", ',', '"'); err == nil {
		t.Fatal("expected an error for an empty upload")
	}
}

func TestResumeVerifiesToken(t *testing.T) {
	repo := newStubStagingRepo()
	staged := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service := newTestService(repo, staged)
	ctx := context.Background()

	iip, err := service.Stage(ctx, 1, "issues.csv", []byte("Subject\nx\n"), "", ',', '"')
	if err != nil {
		t.Fatalf("stage returned error: %v", err)
	}

	resumed, err := service.Resume(ctx, 1, iip.Token())
	if err != nil {
		t.Fatalf("resume returned error: %v", err)
	}
	if resumed.FileName != "issues.csv" {
		t.Fatalf("unexpected staged file: %q", resumed.FileName)
	}

	if _, err := service.Resume(ctx, 1, "2020-01-01 00:00:00"); !errors.Is(err, ErrStaleImport) {
		t.Fatalf("expected ErrStaleImport, got %v", err)
	}
	if _, err := service.Resume(ctx, 2, iip.Token()); !errors.Is(err, ErrNoImport) {
		t.Fatalf("expected ErrNoImport, got %v", err)
	}
}

func TestCompleteSweepsStaleRecords(t *testing.T) {
	repo := newStubStagingRepo()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// An abandoned record from well past the retention window.
	stale := newTestService(repo, now.Add(-4*24*time.Hour))
	if _, err := stale.Stage(ctx, 2, "old.csv", []byte("Subject\nx\n"), "", ',', '"'); err != nil {
		t.Fatalf("stage returned error: %v", err)
	}

	service := newTestService(repo, now)
	iip, err := service.Stage(ctx, 1, "issues.csv", []byte("Subject\nx\n"), "", ',', '"')
	if err != nil {
		t.Fatalf("stage returned error: %v", err)
	}

	if err := service.Complete(ctx, iip); err != nil {
		t.Fatalf("complete returned error: %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("expected the completed and stale records gone, got %d left", len(repo.records))
	}
	if repo.purged != 1 {
		t.Fatalf("expected one stale record purged, got %d", repo.purged)
	}
}

func TestPurgeUsesCutoff(t *testing.T) {
	repo := newStubStagingRepo()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	old := newTestService(repo, now.Add(-48*time.Hour))
	if _, err := old.Stage(ctx, 1, "old.csv", []byte("Subject\nx\n"), "", ',', '"'); err != nil {
		t.Fatalf("stage returned error: %v", err)
	}
	fresh := newTestService(repo, now.Add(-time.Hour))
	if _, err := fresh.Stage(ctx, 2, "fresh.csv", []byte("Subject\nx\n"), "", ',', '"'); err != nil {
		t.Fatalf("stage returned error: %v", err)
	}

	service := newTestService(repo, now)
	purged, err := service.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge returned error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one record purged, got %d", purged)
	}
	if _, ok := repo.records[2]; !ok {
		t.Fatal("expected the fresh record kept")
	}
}
