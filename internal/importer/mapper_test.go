package importer

import (
	"errors"
	"testing"

	"github.com/rpattn/issueimport/internal/domain"
)

func TestFieldMapperFetch(t *testing.T) {
	mapper := NewFieldMapper(domain.ImportConfiguration{
		Mapping: map[string]string{"subject": "Title", "tracker": "Type"},
	})
	row := SourceRow{
		Number:  1,
		Headers: []string{"Title", "Type"},
		Values:  map[string]string{"Title": "A bug", "Type": "Bug"},
	}

	if got := mapper.Fetch("subject", row); got != "A bug" {
		t.Fatalf("unexpected subject: %q", got)
	}
	if got := mapper.Fetch("description", row); got != "" {
		t.Fatalf("expected unmapped field to fetch empty, got %q", got)
	}
	if !mapper.Mapped("tracker") || mapper.Mapped("status") {
		t.Fatal("Mapped does not reflect the configured mapping")
	}
}

func TestUniqueAttributeTranslatesCustomFields(t *testing.T) {
	fields := []domain.CustomField{
		{ID: 3, Name: "Severity", Format: domain.FormatString},
	}

	mapper := NewFieldMapper(domain.ImportConfiguration{
		Mapping:      map[string]string{"subject": "Subject", "Severity": "Sev"},
		UniqueColumn: "Sev",
	})
	if got := mapper.UniqueAttribute(fields); got != "cf_3" {
		t.Fatalf("expected cf_3, got %q", got)
	}

	mapper = NewFieldMapper(domain.ImportConfiguration{
		Mapping:      map[string]string{"subject": "Subject"},
		UniqueColumn: "Subject",
	})
	if got := mapper.UniqueAttribute(fields); got != "subject" {
		t.Fatalf("expected built-in attribute passthrough, got %q", got)
	}

	mapper = NewFieldMapper(domain.ImportConfiguration{
		Mapping: map[string]string{"subject": "Subject"},
	})
	if got := mapper.UniqueAttribute(fields); got != "" {
		t.Fatalf("expected empty unique attribute, got %q", got)
	}
}

func TestValidateConfiguration(t *testing.T) {
	cases := []struct {
		name    string
		cfg     domain.ImportConfiguration
		wantErr bool
	}{
		{
			name: "plain create batch",
			cfg:  domain.ImportConfiguration{Mapping: map[string]string{"subject": "Subject"}},
		},
		{
			name: "update without unique column",
			cfg: domain.ImportConfiguration{
				Mapping:        map[string]string{"subject": "Subject"},
				UpdateExisting: true,
			},
			wantErr: true,
		},
		{
			name: "parent mapping without unique column",
			cfg: domain.ImportConfiguration{
				Mapping: map[string]string{"subject": "Subject", "parent_issue": "Parent"},
			},
			wantErr: true,
		},
		{
			name: "relation mapping without unique column",
			cfg: domain.ImportConfiguration{
				Mapping: map[string]string{"subject": "Subject", "blocks": "Blocks"},
			},
			wantErr: true,
		},
		{
			name: "relation mapping with unique column",
			cfg: domain.ImportConfiguration{
				Mapping:      map[string]string{"subject": "Subject", "blocks": "Blocks"},
				UniqueColumn: "Subject",
			},
		},
		{
			name: "issue ids without id mapping",
			cfg: domain.ImportConfiguration{
				Mapping:    map[string]string{"subject": "Subject"},
				UseIssueID: true,
			},
			wantErr: true,
		},
		{
			name: "unique column on an unmatchable attribute",
			cfg: domain.ImportConfiguration{
				Mapping:      map[string]string{"subject": "Subject", "category": "Category"},
				UniqueColumn: "Category",
			},
			wantErr: true,
		},
		{
			name: "unique column on description",
			cfg: domain.ImportConfiguration{
				Mapping:      map[string]string{"subject": "Subject", "description": "Body"},
				UniqueColumn: "Body",
			},
		},
		{
			name: "unique column on a custom field name",
			cfg: domain.ImportConfiguration{
				Mapping:      map[string]string{"subject": "Subject", "Ticket Ref": "Ref"},
				UniqueColumn: "Ref",
			},
		},
	}

	for _, tc := range cases {
		mapper := NewFieldMapper(tc.cfg)
		err := mapper.ValidateConfiguration(tc.cfg)
		if tc.wantErr {
			var configErr *ConfigurationError
			if !errors.As(err, &configErr) {
				t.Fatalf("%s: expected ConfigurationError, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}
