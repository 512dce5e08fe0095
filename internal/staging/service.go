package staging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/repository"
)

// ErrNoImport is returned when a user tries to resume a batch but holds no
// staged file.
var ErrNoImport = errors.New("no import is in progress for this user")

// ErrStaleImport is returned when the resume token does not match the
// staged record, meaning another import was started in between.
var ErrStaleImport = errors.New("a different import was started since this one was staged")

// retention is how long abandoned staged files survive before Complete
// sweeps them away.
const retention = 72 * time.Hour

// Service stages uploaded files between the preview step and the batch run.
// Each user holds at most one staged file at a time.
type Service struct {
	repo repository.StagingRepository
	now  func() time.Time
}

// NewService wires the staging layer.
func NewService(repo repository.StagingRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Stage stores the uploaded file for the user, replacing any staged file the
// user already holds, and returns the record whose token authorizes the run.
func (s *Service) Stage(ctx context.Context, userID int64, fileName string, data []byte, encoding string, delimiter, quote rune) (domain.ImportInProgress, error) {
	if len(data) == 0 {
		return domain.ImportInProgress{}, fmt.Errorf("uploaded file is empty")
	}

	iip := domain.ImportInProgress{
		UserID:    userID,
		FileName:  fileName,
		Encoding:  encoding,
		Delimiter: delimiter,
		Quote:     quote,
		Data:      data,
		CreatedAt: s.now().UTC(),
	}
	stored, err := s.repo.Replace(ctx, iip)
	if err != nil {
		return domain.ImportInProgress{}, fmt.Errorf("failed to stage import file: %w", err)
	}
	return stored, nil
}

// Resume fetches the user's staged file, verifying the token issued at
// staging time still identifies it.
func (s *Service) Resume(ctx context.Context, userID int64, token string) (domain.ImportInProgress, error) {
	iip, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ImportInProgress{}, ErrNoImport
		}
		return domain.ImportInProgress{}, fmt.Errorf("failed to load staged import: %w", err)
	}
	if iip.Token() != token {
		return domain.ImportInProgress{}, ErrStaleImport
	}
	return iip, nil
}

// Complete discards the staged file after a finished run and sweeps records
// older than the retention window.
func (s *Service) Complete(ctx context.Context, iip domain.ImportInProgress) error {
	if err := s.repo.Delete(ctx, iip.ID); err != nil {
		return fmt.Errorf("failed to delete staged import: %w", err)
	}

	purged, err := s.repo.PurgeOlderThan(ctx, s.now().UTC().Add(-retention))
	if err != nil {
		return fmt.Errorf("failed to purge stale staged imports: %w", err)
	}
	if purged > 0 {
		log.Printf("purged %d stale staged imports", purged)
	}
	return nil
}

// Purge removes staged files older than the cutoff without touching current
// ones. Exposed for the maintenance CLI.
func (s *Service) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.PurgeOlderThan(ctx, s.now().UTC().Add(-olderThan))
}
