package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/budgetbee/importer/internal/domain/importer/parser"
	"github.com/budgetbee/importer/internal/domain/importer/service"
)

const maxUploadBytes = 16 << 20 // 16 MiB

// ImportHandler exposes the import wizard over HTTP. Sessions live in
// memory; a restart abandons in-flight imports.
type ImportHandler struct {
	importSvc *service.ImportService
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*service.Session
}

// NewImportHandler creates a new import handler.
func NewImportHandler(importSvc *service.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*service.Session),
	}
}

// Register wires the wizard routes onto mux.
func (h *ImportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/import/analyze", h.Analyze)
	mux.HandleFunc("POST /v1/import/sessions/{id}/mapping", h.BeginMapping)
	mux.HandleFunc("PUT /v1/import/sessions/{id}/mapping", h.SetMapping)
	mux.HandleFunc("POST /v1/import/sessions/{id}/preview", h.Preview)
	mux.HandleFunc("PUT /v1/import/sessions/{id}/duplicates", h.SetDuplicateAction)
	mux.HandleFunc("POST /v1/import/sessions/{id}/commit", h.Commit)
	mux.HandleFunc("POST /v1/import/sessions/{id}/back", h.Back)
}

type sectionResponse struct {
	Kind             string            `json:"kind"`
	Name             string            `json:"name"`
	Headers          []string          `json:"headers"`
	RowCount         int               `json:"row_count"`
	Mapping          map[string]string `json:"mapping"`
	MappingFromCache bool              `json:"mapping_from_cache"`
}

type sessionResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Step      string            `json:"step"`
	FileName  string            `json:"file_name,omitempty"`
	SheetName string            `json:"sheet_name,omitempty"`
	Layout    string            `json:"layout,omitempty"`
	Sections  []sectionResponse `json:"sections,omitempty"`
}

// Analyze accepts a multipart upload, runs workbook analysis and opens a
// wizard session.
func (h *ImportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart request: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	session, err := h.importSvc.Analyze(r.Context(), userID, header.Filename, data)
	if err != nil {
		h.analyzeError(w, err)
		return
	}

	h.mu.Lock()
	h.sessions[session.ID] = session
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, h.sessionResponse(session))
}

// analyzeError maps the parser's failure modes onto user-facing statuses.
func (h *ImportHandler) analyzeError(w http.ResponseWriter, err error) {
	var sheetErr *parser.SheetNotFoundError
	var legacyErr *parser.LegacyFormatError
	switch {
	case errors.As(err, &legacyErr):
		h.writeError(w, http.StatusUnsupportedMediaType, legacyErr)
	case errors.As(err, &sheetErr):
		h.writeError(w, http.StatusUnprocessableEntity, sheetErr)
	case errors.Is(err, parser.ErrUnreadableFile):
		h.writeError(w, http.StatusUnsupportedMediaType, err)
	default:
		h.logger.Error("failed to analyze workbook", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, errors.New("failed to analyze workbook"))
	}
}

// BeginMapping advances the wizard into the mapping step.
func (h *ImportHandler) BeginMapping(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.importSvc.BeginMapping(session); err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.sessionResponse(session))
}

type setMappingRequest struct {
	Section string `json:"section"`
	Header  string `json:"header"`
	Field   string `json:"field"`
}

// SetMapping overrides a single header mapping during the mapping step.
func (h *ImportHandler) SetMapping(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req setMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := h.importSvc.SetMapping(session, parser.Kind(req.Section), req.Header, req.Field); err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.sessionResponse(session))
}

type previewRow struct {
	Data      map[string]string `json:"data"`
	Valid     bool              `json:"valid"`
	Errors    []string          `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Duplicate *previewDuplicate `json:"duplicate,omitempty"`
	Action    string            `json:"action"`
}

type previewDuplicate struct {
	RowIndex     int    `json:"row_index"`
	ExistingID   string `json:"existing_id"`
	ExistingName string `json:"existing_name"`
	MatchType    string `json:"match_type"`
}

type previewResponse struct {
	SessionID uuid.UUID               `json:"session_id"`
	Step      string                  `json:"step"`
	Sections  map[string][]previewRow `json:"sections"`
}

// Preview confirms the mappings and returns the validated, deduplicated rows.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.importSvc.Preview(r.Context(), session); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, err)
			return
		}
		h.logger.Error("failed to build preview", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, errors.New("failed to build preview"))
		return
	}

	resp := previewResponse{
		SessionID: session.ID,
		Step:      session.State.Step.String(),
		Sections:  make(map[string][]previewRow),
	}
	for _, kind := range parser.Kinds {
		section := session.Section(kind)
		if section == nil {
			continue
		}
		rows := make([]previewRow, 0, len(section.Rows))
		for _, pr := range section.Rows {
			row := previewRow{
				Data:     pr.Data,
				Valid:    pr.Valid,
				Errors:   pr.Errors,
				Warnings: pr.Warnings,
				Action:   string(pr.Action),
			}
			if pr.Duplicate != nil {
				row.Duplicate = &previewDuplicate{
					RowIndex:     pr.Duplicate.RowIndex,
					ExistingID:   pr.Duplicate.ExistingID.String(),
					ExistingName: pr.Duplicate.ExistingName,
					MatchType:    string(pr.Duplicate.MatchType),
				}
			}
			rows = append(rows, row)
		}
		resp.Sections[string(kind)] = rows
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type duplicateActionRequest struct {
	Section  string `json:"section"`
	RowIndex int    `json:"row_index"`
	Action   string `json:"action"`
}

// SetDuplicateAction resolves one duplicate row during preview.
func (h *ImportHandler) SetDuplicateAction(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req duplicateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	action := service.DuplicateAction(req.Action)
	switch action {
	case service.ActionSkip, service.ActionUpdate, service.ActionImportNew:
	default:
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action %q", req.Action))
		return
	}
	if err := h.importSvc.SetDuplicateAction(session, parser.Kind(req.Section), req.RowIndex, action); err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type countsResponse struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type commitResponse struct {
	SessionID     uuid.UUID      `json:"session_id"`
	Step          string         `json:"step"`
	Bills         countsResponse `json:"bills"`
	Subscriptions countsResponse `json:"subscriptions"`
	Debts         countsResponse `json:"debts"`
}

// Commit runs the import and returns the per-section outcome counters. The
// session is removed once the wizard reaches Done.
func (h *ImportHandler) Commit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	results, err := h.importSvc.Commit(r.Context(), session, nil)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, err)
			return
		}
		h.logger.Error("failed to commit import", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, errors.New("failed to commit import"))
		return
	}

	h.mu.Lock()
	delete(h.sessions, session.ID)
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, commitResponse{
		SessionID:     session.ID,
		Step:          session.State.Step.String(),
		Bills:         countsResponse(results.Bills),
		Subscriptions: countsResponse(results.Subscriptions),
		Debts:         countsResponse(results.Debts),
	})
}

// Back steps the wizard back one state.
func (h *ImportHandler) Back(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.importSvc.Back(session); err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.sessionResponse(session))
}

func (h *ImportHandler) sessionResponse(session *service.Session) sessionResponse {
	resp := sessionResponse{
		SessionID: session.ID,
		Step:      session.State.Step.String(),
		FileName:  session.State.FileName,
		SheetName: session.State.SheetName,
		Layout:    string(session.State.Layout),
	}
	for _, kind := range parser.Kinds {
		section := session.Section(kind)
		if section == nil {
			continue
		}
		resp.Sections = append(resp.Sections, sectionResponse{
			Kind:             string(kind),
			Name:             section.Table.SectionName,
			Headers:          section.Table.Headers,
			RowCount:         len(section.Table.Rows),
			Mapping:          section.Mapping,
			MappingFromCache: section.MappingFromCache,
		})
	}
	return resp
}

func (h *ImportHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		h.writeError(w, http.StatusUnauthorized, errors.New("missing X-User-ID header"))
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid user id: %w", err))
		return uuid.Nil, false
	}
	return userID, true
}

func (h *ImportHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return nil, false
	}
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid session id: %w", err))
		return nil, false
	}

	h.mu.Lock()
	session := h.sessions[sessionID]
	h.mu.Unlock()

	if session == nil || session.UserID != userID {
		h.writeError(w, http.StatusNotFound, errors.New("session not found"))
		return nil, false
	}
	return session, true
}

func (h *ImportHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *ImportHandler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
