package notification

import (
	"context"
	"log"

	"github.com/rpattn/issueimport/internal/domain"
)

// Dispatcher delivers issue lifecycle notifications. Delivery is
// fire-and-forget: a failed notification must never fail the row that
// triggered it.
type Dispatcher interface {
	IssueAdded(ctx context.Context, issue domain.Issue)
	IssueUpdated(ctx context.Context, journal domain.Journal)
}

// Events the store-wide configuration can enable.
const (
	EventIssueAdded   = "issue_added"
	EventIssueUpdated = "issue_updated"
)

// LogDispatcher writes notifications to the process log, gated per event by
// the store-wide notified-events setting.
type LogDispatcher struct {
	enabled map[string]bool
}

// NewLogDispatcher builds a dispatcher that emits only the named events.
func NewLogDispatcher(notifiedEvents []string) *LogDispatcher {
	enabled := make(map[string]bool, len(notifiedEvents))
	for _, event := range notifiedEvents {
		enabled[event] = true
	}
	return &LogDispatcher{enabled: enabled}
}

func (d *LogDispatcher) IssueAdded(ctx context.Context, issue domain.Issue) {
	if !d.enabled[EventIssueAdded] {
		return
	}
	log.Printf("[notify] issue #%d added: %s", issue.ID, issue.Subject)
}

func (d *LogDispatcher) IssueUpdated(ctx context.Context, journal domain.Journal) {
	if !d.enabled[EventIssueUpdated] {
		return
	}
	log.Printf("[notify] issue #%d updated by user %d", journal.IssueID, journal.UserID)
}

// Discard silently drops every notification. Used by the CLI and tests.
type Discard struct{}

func (Discard) IssueAdded(ctx context.Context, issue domain.Issue)       {}
func (Discard) IssueUpdated(ctx context.Context, journal domain.Journal) {}
