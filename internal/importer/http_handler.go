package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/issueimport/internal/auth"
	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/repository"
	"github.com/rpattn/issueimport/internal/staging"
)

// StageHandler accepts a tabular file upload, stages it for the acting user
// and responds with the resume token plus a preview of the parsed content.
type StageHandler struct {
	importer *Service
	staging  *staging.Service
}

// NewStageHTTPHandler wraps the staging step with a POST endpoint.
func NewStageHTTPHandler(importer *Service, stagingService *staging.Service) http.Handler {
	return &StageHandler{importer: importer, staging: stagingService}
}

func (h *StageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	projectID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("projectId")), 10, 64)
	if err != nil || projectID <= 0 {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	encoding := strings.TrimSpace(r.FormValue("encoding"))
	delimiter := firstRune(r.FormValue("delimiter"), ',')
	quote := firstRune(r.FormValue("quote"), '"')

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	iip, err := h.staging.Stage(r.Context(), userID, header.Filename, data, encoding, delimiter, quote)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	preview, err := h.importer.Preview(r.Context(), projectID, iip.FileName, iip.Data, encoding, delimiter, quote)
	if err != nil {
		var configErr *ConfigurationError
		if errors.As(err, &configErr) {
			http.Error(w, configErr.Message, http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stageResponse{Token: iip.Token(), FileName: iip.FileName, Preview: preview})
}

type stageResponse struct {
	Token    string  `json:"token"`
	FileName string  `json:"file_name"`
	Preview  Preview `json:"preview"`
}

// runRequest is the JSON body of the run endpoint. The mapping goes from
// target field to source column header.
type runRequest struct {
	ProjectID         int64             `json:"project_id"`
	Token             string            `json:"token"`
	Mapping           map[string]string `json:"mapping"`
	UniqueColumn      string            `json:"unique_column"`
	NotesColumn       string            `json:"notes_column"`
	DefaultTrackerID  int64             `json:"default_tracker_id"`
	DefaultStatusID   int64             `json:"default_status_id"`
	DefaultPriorityID int64             `json:"default_priority_id"`

	UpdateExisting     bool `json:"update_existing"`
	UpdateOtherProject bool `json:"update_other_project"`
	SendNotifications  bool `json:"send_notifications"`
	AddCategories      bool `json:"add_categories"`
	AddVersions        bool `json:"add_versions"`
	UseIssueID         bool `json:"use_issue_id"`
	IgnoreNonExist     bool `json:"ignore_non_existing"`
	UseAnonymous       bool `json:"use_anonymous"`
}

// RunHandler executes a staged import batch and responds with the report.
type RunHandler struct {
	importer *Service
	staging  *staging.Service
}

// NewRunHTTPHandler wraps the batch run with a POST endpoint.
func NewRunHTTPHandler(importer *Service, stagingService *staging.Service) http.Handler {
	return &RunHandler{importer: importer, staging: stagingService}
}

func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.ProjectID <= 0 {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	iip, err := h.staging.Resume(r.Context(), userID, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, staging.ErrNoImport):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, staging.ErrStaleImport):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	cfg := domain.ImportConfiguration{
		ProjectID:          req.ProjectID,
		Encoding:           iip.Encoding,
		Delimiter:          iip.Delimiter,
		Quote:              iip.Quote,
		Mapping:            req.Mapping,
		UniqueColumn:       req.UniqueColumn,
		NotesColumn:        req.NotesColumn,
		DefaultTrackerID:   req.DefaultTrackerID,
		DefaultStatusID:    req.DefaultStatusID,
		DefaultPriorityID:  req.DefaultPriorityID,
		ActingUserID:       userID,
		UpdateExisting:     req.UpdateExisting,
		UpdateOtherProject: req.UpdateOtherProject,
		SendNotifications:  req.SendNotifications,
		AddCategories:      req.AddCategories,
		AddVersions:        req.AddVersions,
		UseIssueID:         req.UseIssueID,
		IgnoreNonExist:     req.IgnoreNonExist,
		UseAnonymous:       req.UseAnonymous,
	}

	result, err := h.importer.Run(r.Context(), cfg, iip.FileName, iip.Data)
	if err != nil {
		var configErr *ConfigurationError
		if errors.As(err, &configErr) {
			http.Error(w, configErr.Message, http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.staging.Complete(r.Context(), iip); err != nil {
		// The batch already ran; losing the cleanup is not worth a 500.
		log.Printf("failed to complete staged import %s: %v", iip.ID, err)
	}

	writeJSON(w, http.StatusOK, result)
}

// LogsHandler lists the persisted row-level failures for a project, newest
// batches first.
type LogsHandler struct {
	logs repository.ImportLogRepository
}

// NewLogsHTTPHandler wraps the import-log listing with a GET endpoint.
func NewLogsHTTPHandler(logs repository.ImportLogRepository) http.Handler {
	return &LogsHandler{logs: logs}
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := auth.RequireUserID(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	projectID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("projectId")), 10, 64)
	if err != nil || projectID <= 0 {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	entries, err := h.logs.List(r.Context(), projectID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func firstRune(value string, fallback rune) rune {
	for _, r := range value {
		return r
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
