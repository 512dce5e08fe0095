package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/rpattn/issueimport/internal/domain"
)

func newTestResolver(store *stubStore, useAnonymous bool) (*Resolver, *ResolutionCache) {
	cache := NewResolutionCache()
	resolver := NewResolver(&stubUsers{store}, &stubVersions{store}, &stubIssues{store}, cache, useAnonymous)
	return resolver, cache
}

func TestUserByLoginCachesLookups(t *testing.T) {
	store := newStubStore()
	resolver, _ := newTestResolver(store, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := resolver.UserByLogin(ctx, "admin")
		if err != nil {
			t.Fatalf("resolve returned error: %v", err)
		}
		if id != 1 {
			t.Fatalf("unexpected user id: %d", id)
		}
	}
	if store.getByLoginCalls != 1 {
		t.Fatalf("expected one store query, got %d", store.getByLoginCalls)
	}
}

func TestUserByLoginAnonymousFallback(t *testing.T) {
	store := newStubStore()
	resolver, _ := newTestResolver(store, false)

	_, err := resolver.UserByLogin(context.Background(), "ghost")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Kind != KindUser {
		t.Fatalf("expected a user NotFoundError, got %v", err)
	}

	store.anonymous = &domain.User{ID: 99, Login: "anonymous"}
	resolver, _ = newTestResolver(store, true)
	id, err := resolver.UserByLogin(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if id != 99 {
		t.Fatalf("expected the anonymous account, got %d", id)
	}
}

func TestVersionByNameAutoCreatesOnce(t *testing.T) {
	store := newStubStore()
	resolver, _ := newTestResolver(store, false)
	ctx := context.Background()

	first, err := resolver.VersionByName(ctx, 1, "1.0", true)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	second, err := resolver.VersionByName(ctx, 1, "1.0", true)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same version id, got %d and %d", first, second)
	}
	if store.versionCreates != 1 {
		t.Fatalf("expected one create, got %d", store.versionCreates)
	}

	_, err = resolver.VersionByName(ctx, 1, "2.0", false)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Kind != KindVersion {
		t.Fatalf("expected a version NotFoundError, got %v", err)
	}
}

func TestIssueByUniqueValuePrefersCache(t *testing.T) {
	store := newStubStore()
	resolver, cache := newTestResolver(store, false)
	report := NewBatchReport([]string{"Subject"})

	cached := domain.Issue{ID: 42, ProjectID: 1, Subject: "Cached"}
	cache.StoreIssue("Cached", cached)

	issue, err := resolver.IssueByUniqueValue(context.Background(), "subject", "Cached", testRow(1), report)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if issue.ID != 42 {
		t.Fatalf("expected the cached issue, got %d", issue.ID)
	}
	if store.findByUniqueCalls != 0 {
		t.Fatalf("expected no store query, got %d", store.findByUniqueCalls)
	}
}

func TestIssueByUniqueValueAmbiguity(t *testing.T) {
	store := newStubStore()
	store.addIssue(domain.Issue{ProjectID: 1, TrackerID: 1, StatusID: 1, PriorityID: 1, AuthorID: 1, Subject: "dup"})
	store.addIssue(domain.Issue{ProjectID: 1, TrackerID: 1, StatusID: 1, PriorityID: 1, AuthorID: 1, Subject: "dup"})
	resolver, _ := newTestResolver(store, false)
	report := NewBatchReport([]string{"Subject"})

	_, err := resolver.IssueByUniqueValue(context.Background(), "subject", "dup", testRow(1), report)
	var ambiguous *AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if report.FailedCount() != 1 {
		t.Fatalf("expected the row registered as failed, got %d", report.FailedCount())
	}
}

func TestIssueByUniqueValueByID(t *testing.T) {
	store := newStubStore()
	store.addIssue(domain.Issue{ID: 7, ProjectID: 1, TrackerID: 1, StatusID: 1, PriorityID: 1, AuthorID: 1, Subject: "Seven"})
	resolver, _ := newTestResolver(store, false)
	report := NewBatchReport([]string{"Id"})

	issue, err := resolver.IssueByUniqueValue(context.Background(), "id", "7", testRow(1), report)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if issue.Subject != "Seven" {
		t.Fatalf("unexpected issue: %+v", issue)
	}

	_, err = resolver.IssueByUniqueValue(context.Background(), "id", "8", testRow(2), report)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
