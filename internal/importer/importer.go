package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/notification"
	"github.com/rpattn/issueimport/internal/repository"
)

// Service runs import batches against the record store. Rows are processed
// strictly sequentially in file order; per-batch caches make issues created
// by earlier rows referenceable from later ones.
type Service struct {
	issues     repository.IssueRepository
	users      repository.UserRepository
	projects   repository.ProjectRepository
	versions   repository.VersionRepository
	categories repository.CategoryRepository
	lookups    repository.LookupRepository
	logs       repository.ImportLogRepository
	dispatcher notification.Dispatcher
}

// NewService wires the import pipeline. logs may be nil to disable the
// persistent failure log.
func NewService(
	issues repository.IssueRepository,
	users repository.UserRepository,
	projects repository.ProjectRepository,
	versions repository.VersionRepository,
	categories repository.CategoryRepository,
	lookups repository.LookupRepository,
	logs repository.ImportLogRepository,
	dispatcher notification.Dispatcher,
) *Service {
	return &Service{
		issues:     issues,
		users:      users,
		projects:   projects,
		versions:   versions,
		categories: categories,
		lookups:    lookups,
		logs:       logs,
		dispatcher: dispatcher,
	}
}

// pipeline bundles the per-batch collaborators built once per Run.
type pipeline struct {
	transformer *RowTransformer
	engine      *UpsertEngine
	linker      *RelationLinker
	report      *BatchReport

	batchProject domain.Project
	customFields []domain.CustomField
	uniqueAttr   string
}

// Run executes one import batch over the uploaded file bytes. A
// ConfigurationError rejects the batch up front; anything that goes wrong
// below the row boundary is confined to its row and recorded in the report.
func (s *Service) Run(ctx context.Context, cfg domain.ImportConfiguration, fileName string, data []byte) (Result, error) {
	headers, rows, err := DecodeRows(fileName, data, cfg.Encoding, cfg.Delimiter, cfg.Quote)
	if err != nil {
		return Result{}, err
	}

	mapper := NewFieldMapper(cfg)
	if err := mapper.ValidateConfiguration(cfg); err != nil {
		return Result{}, err
	}

	batchProject, err := s.projects.GetByID(ctx, cfg.ProjectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load project %d: %w", cfg.ProjectID, err)
	}
	customFields, err := s.lookups.ListCustomFields(ctx, cfg.ProjectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load custom fields: %w", err)
	}

	cache := NewResolutionCache()
	resolver := NewResolver(s.users, s.versions, s.issues, cache, cfg.UseAnonymous)

	p := &pipeline{
		transformer:  NewRowTransformer(mapper, resolver, s.projects, s.categories, s.lookups, cfg),
		engine:       NewUpsertEngine(s.issues, s.lookups, resolver, cache, s.dispatcher, cfg),
		linker:       NewRelationLinker(s.issues, mapper, resolver, cfg),
		report:       NewBatchReport(headers),
		batchProject: batchProject,
		customFields: customFields,
		uniqueAttr:   mapper.UniqueAttribute(customFields),
	}

	batchID := uuid.New()
	log.Printf("import batch %s: project=%d rows=%d file=%s", batchID, cfg.ProjectID, len(rows), fileName)

	for _, row := range rows {
		failedBefore := p.report.FailedCount()

		rowErr := s.processRow(ctx, p, cfg, row)
		if rowErr != nil {
			if !errors.Is(rowErr, errRowAborted) {
				ordinal := p.report.FailRow(row)
				p.report.Messagef("Warning: An unexpected error occurred on issue %d below: %v", ordinal, rowErr)
			}
			if p.report.FailedCount() > failedBefore {
				s.recordFailure(ctx, batchID, cfg, fileName, row, p.report.LastMessage())
			}
			continue
		}

		p.report.RowHandled()
	}

	result := p.report.Result()
	log.Printf("import batch %s: handled=%d updated=%d skipped=%d failed=%d",
		batchID, result.Handled, result.Updated, result.Skipped, result.Failed)
	return result, nil
}

// processRow takes one row through the full pipeline. A nil return means the
// row was handled; errRowAborted means the outcome was already recorded at
// the site that decided it.
func (s *Service) processRow(ctx context.Context, p *pipeline, cfg domain.ImportConfiguration, row SourceRow) error {
	project, err := p.transformer.Project(ctx, row, p.batchProject)
	if err != nil {
		return err
	}

	refs, err := p.transformer.ResolveReferences(ctx, row, project, p.report)
	if err != nil {
		return err
	}

	cand, err := p.transformer.newCandidate(row, project, refs, p.report)
	if err != nil {
		return err
	}

	if err := p.engine.ResolveTarget(ctx, cand, refs, row, p.uniqueAttr, p.report); err != nil {
		return err
	}

	p.transformer.Assign(cand, refs, row)

	if err := p.linker.LinkParent(ctx, cand, row, p.uniqueAttr, p.report); err != nil {
		return err
	}
	if err := p.transformer.ApplyCustomFields(ctx, cand, row, p.customFields, p.report); err != nil {
		return err
	}
	if err := p.transformer.ResolveWatchers(ctx, cand, row, p.report); err != nil {
		return err
	}

	if err := p.engine.Persist(ctx, cand, row, p.report); err != nil {
		return err
	}

	if err := p.linker.LinkRelations(ctx, cand, row, p.uniqueAttr, p.report); err != nil {
		return err
	}

	if cand.isUpdate {
		p.report.RowUpdated()
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, batchID uuid.UUID, cfg domain.ImportConfiguration, fileName string, row SourceRow, message string) {
	if s.logs == nil {
		return
	}
	rowNumber := row.Number
	entry := domain.ImportLogEntry{
		BatchID:   batchID,
		ProjectID: cfg.ProjectID,
		FileName:  fileName,
		RowNumber: &rowNumber,
		Message:   message,
	}
	if err := s.logs.Record(ctx, entry); err != nil {
		log.Printf("failed to record import log entry for row %d: %v", row.Number, err)
	}
}

// AvailableField is one mappable target presented by the preview.
type AvailableField struct {
	Field string `json:"field"`
	Group string `json:"group"`
}

// Preview describes a staged file before the batch runs: parsed headers, the
// first sample rows and the mappable target fields for the project.
type Preview struct {
	Headers         []string         `json:"headers"`
	Samples         []SourceRow      `json:"samples"`
	TotalRows       int              `json:"total_rows"`
	AvailableFields []AvailableField `json:"available_fields"`
}

const previewSampleSize = 5

// Preview parses a staged file and reports its shape together with the
// fields a column can map to: the built-in issue attributes, the project's
// custom fields by display name, and the relation types.
func (s *Service) Preview(ctx context.Context, projectID int64, fileName string, data []byte, encoding string, delimiter, quote rune) (Preview, error) {
	headers, rows, err := DecodeRows(fileName, data, encoding, delimiter, quote)
	if err != nil {
		return Preview{}, err
	}

	customFields, err := s.lookups.ListCustomFields(ctx, projectID)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to load custom fields: %w", err)
	}

	fields := make([]AvailableField, 0, len(issueAttributes)+len(customFields))
	for _, attr := range issueAttributes {
		fields = append(fields, AvailableField{Field: attr, Group: "attribute"})
	}
	names := make([]string, 0, len(customFields))
	for _, field := range customFields {
		names = append(names, field.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, AvailableField{Field: name, Group: "custom_field"})
	}
	for _, relType := range domain.RelationTypes() {
		fields = append(fields, AvailableField{Field: string(relType), Group: "relation"})
	}

	samples := rows
	if len(samples) > previewSampleSize {
		samples = samples[:previewSampleSize]
	}

	return Preview{
		Headers:         headers,
		Samples:         samples,
		TotalRows:       len(rows),
		AvailableFields: fields,
	}, nil
}
