package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dshills/prdforge/internal/artifacts"
	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/export"
	"github.com/dshills/prdforge/internal/generation"
	"github.com/dshills/prdforge/internal/llm"
	"github.com/dshills/prdforge/internal/notion"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	sessionHeader = "X-Session-Id"
	maxBodyBytes  = 1 << 20
)

// NotionExporter publishes artifacts to Notion.
type NotionExporter interface {
	ExportArtifact(ctx context.Context, a *domain.Artifact, parentID string) (string, error)
	Search(ctx context.Context, query string) ([]notion.Page, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	artifacts *artifacts.Service
	generator *generation.Service
	notion    NotionExporter
	logger    *slog.Logger
}

// NewHandler creates a new Handler. generator and notion may be nil, in
// which case their routes answer 503.
func NewHandler(arts *artifacts.Service, gen *generation.Service, nc NotionExporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{artifacts: arts, generator: gen, notion: nc, logger: logger}
}

// Error response helpers

type errorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err, message string) {
	writeJSON(w, status, errorResponse{Error: err, Message: message})
}

// writeDomainError translates service errors to HTTP responses. Causes of
// server-side failures are logged, never returned.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var inputErr *domain.InputValidationError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_input",
			Message: inputErr.Error(),
			Details: map[string]string{"field": inputErr.Field},
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, domain.ErrVersionMismatch):
		writeError(w, http.StatusBadRequest, "version_mismatch", "Version does not belong to this artifact")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "Artifact was modified by another request; reload and retry")
	case errors.Is(err, notion.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "notion_not_connected", "Notion is not connected")
	case errors.Is(err, domain.ErrGenerationFailed):
		h.logger.ErrorContext(r.Context(), "generation failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "generation_failed", "Failed to generate content. Please try again.")
	default:
		h.logger.ErrorContext(r.Context(), fallback, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
	return false
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_uuid", fmt.Sprintf("Invalid %s format", param))
		return uuid.Nil, false
	}
	return id, true
}

func sessionID(r *http.Request) string {
	return r.Header.Get(sessionHeader)
}

// Models

type listModelsResponse struct {
	Providers       []llm.ProviderInfo `json:"providers"`
	DefaultProvider llm.Provider       `json:"defaultProvider"`
	DefaultModel    string             `json:"defaultModel"`
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		writeJSON(w, http.StatusOK, listModelsResponse{Providers: []llm.ProviderInfo{}})
		return
	}

	factory := h.generator.Factory()
	writeJSON(w, http.StatusOK, listModelsResponse{
		Providers:       factory.ListProviders(r.Context()),
		DefaultProvider: factory.DefaultProvider(),
		DefaultModel:    factory.DefaultModel(),
	})
}

// Generation

type generateRequest struct {
	Idea        string       `json:"idea"`
	FeatureIdea string       `json:"featureIdea"`
	Problem     string       `json:"problem"`
	Backlog     string       `json:"backlog"`
	Question    string       `json:"question"`
	Features    []string     `json:"features"`
	Context     string       `json:"context"`
	Answer      string       `json:"answer"`
	Provider    llm.Provider `json:"provider"`
	Model       string       `json:"model"`
}

func (req generateRequest) input(tool domain.ToolType) generation.Input {
	in := generation.Input{
		Tool:     tool,
		Provider: req.Provider,
		Model:    req.Model,
	}
	switch tool {
	case domain.ToolPRD:
		in.Text = req.Idea
	case domain.ToolUserStories:
		in.Text = req.FeatureIdea
	case domain.ToolProblemRefiner:
		in.Text = req.Problem
	case domain.ToolFeaturePrioritizer:
		in.Features = req.Features
		in.Text = req.Context
	case domain.ToolSprintPlanner:
		in.Text = req.Backlog
	case domain.ToolInterviewPrep:
		in.Text = req.Question
		in.Answer = req.Answer
	}
	return in
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	tool, err := domain.ParseToolType(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to generate")
		return
	}

	var req generateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	in := req.input(tool)
	if err := in.Validate(); err != nil {
		h.writeDomainError(w, r, err, "Failed to generate")
		return
	}
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Generation service not configured")
		return
	}

	result, err := h.generator.Generate(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to generate")
		return
	}

	a, err := h.artifacts.Create(r.Context(), artifacts.CreateInput{
		ToolType: tool,
		RawInput: in.RawInput(),
		Title:    result.Title,
		Payload:  result.Payload,
		Model:    result.Model,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to save artifact")
		return
	}

	h.artifacts.RecordGeneration(r.Context(), a, result.Duration, sessionID(r))
	writeJSON(w, http.StatusCreated, a)
}

type rewriteSectionRequest struct {
	SectionName    string       `json:"sectionName"`
	CurrentContent string       `json:"currentContent"`
	Instruction    string       `json:"instruction"`
	Provider       llm.Provider `json:"provider"`
	Model          string       `json:"model"`
}

type rewriteSectionResponse struct {
	RewrittenContent string `json:"rewrittenContent"`
}

func (h *Handler) RewriteSection(w http.ResponseWriter, r *http.Request) {
	var req rewriteSectionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	in := generation.RewriteInput{
		SectionName:    req.SectionName,
		CurrentContent: req.CurrentContent,
		Instruction:    req.Instruction,
		Provider:       req.Provider,
		Model:          req.Model,
	}
	if err := in.Validate(); err != nil {
		h.writeDomainError(w, r, err, "Failed to rewrite section")
		return
	}
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Generation service not configured")
		return
	}

	text, err := h.generator.RewriteSection(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to rewrite section")
		return
	}
	writeJSON(w, http.StatusOK, rewriteSectionResponse{RewrittenContent: text})
}

// Artifacts

type listArtifactsResponse struct {
	Artifacts []*domain.Artifact `json:"artifacts"`
}

func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	var filter *domain.ToolType
	if s := r.URL.Query().Get("toolType"); s != "" {
		tool, err := domain.ParseToolType(s)
		if err != nil {
			h.writeDomainError(w, r, err, "Failed to list artifacts")
			return
		}
		filter = &tool
	}

	list, err := h.artifacts.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to list artifacts")
		return
	}
	if list == nil {
		list = []*domain.Artifact{}
	}
	writeJSON(w, http.StatusOK, listArtifactsResponse{Artifacts: list})
}

func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	a, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to get artifact")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type updateArtifactRequest struct {
	Title            *string                    `json:"title"`
	Payload          map[string]json.RawMessage `json:"payload"`
	ExpectedRevision *int                       `json:"expectedRevision"`
}

func (h *Handler) UpdateArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateArtifactRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	a, err := h.artifacts.Update(r.Context(), id, artifacts.Patch{
		Title:            req.Title,
		Fields:           req.Payload,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to update artifact")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.artifacts.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err, "Failed to delete artifact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shareResponse struct {
	ShareID string `json:"shareId"`
}

func (h *Handler) ShareArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	shareID, err := h.artifacts.Share(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to share artifact")
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{ShareID: shareID})
}

func (h *Handler) GetShared(w http.ResponseWriter, r *http.Request) {
	a, err := h.artifacts.GetShared(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to get shared artifact")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type rewriteArtifactRequest struct {
	Section          string       `json:"section"`
	Instruction      string       `json:"instruction"`
	Provider         llm.Provider `json:"provider"`
	Model            string       `json:"model"`
	ExpectedRevision *int         `json:"expectedRevision"`
}

func (h *Handler) RewriteArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req rewriteArtifactRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	a, err := h.artifacts.Rewrite(r.Context(), id, artifacts.RewriteRequest{
		Section:          req.Section,
		Instruction:      req.Instruction,
		Provider:         req.Provider,
		Model:            req.Model,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to rewrite artifact")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) CompareArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	otherID, ok := pathUUID(w, r, "otherId")
	if !ok {
		return
	}

	result, err := h.artifacts.Compare(r.Context(), id, otherID)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to compare artifacts")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Versions

type listVersionsResponse struct {
	Versions []*domain.Version `json:"versions"`
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	versions, err := h.artifacts.ListVersions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to list versions")
		return
	}
	if versions == nil {
		versions = []*domain.Version{}
	}
	writeJSON(w, http.StatusOK, listVersionsResponse{Versions: versions})
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	versionID, ok := pathUUID(w, r, "versionId")
	if !ok {
		return
	}

	v, err := h.artifacts.GetVersion(r.Context(), id, versionID)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to get version")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) DiffVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	versionID, ok := pathUUID(w, r, "versionId")
	if !ok {
		return
	}

	result, err := h.artifacts.DiffVersion(r.Context(), id, versionID)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to diff version")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type restoreRequest struct {
	ExpectedRevision *int `json:"expectedRevision"`
}

func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	versionID, ok := pathUUID(w, r, "versionId")
	if !ok {
		return
	}

	var req restoreRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	a, err := h.artifacts.Restore(r.Context(), id, versionID, req.ExpectedRevision)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to restore version")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Export

func (h *Handler) ExportArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(domain.ExportMarkdown)
	}
	exportType, err := domain.ParseExportType(format)
	if err == nil && exportType == domain.ExportNotion {
		err = domain.NewInputError("format", "must be one of markdown, json, zip")
	}
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to export artifact")
		return
	}

	a, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to export artifact")
		return
	}

	var (
		body        []byte
		contentType string
		ext         string
	)
	switch exportType {
	case domain.ExportMarkdown:
		body, contentType, ext = export.Markdown(a), "text/markdown; charset=utf-8", "md"
	case domain.ExportJSON:
		body, err = export.JSON(a)
		contentType, ext = "application/json", "json"
	case domain.ExportZip:
		body, err = h.zipBundle(r.Context(), a)
		contentType, ext = "application/zip", "zip"
	}
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to export artifact")
		return
	}

	h.artifacts.RecordExport(r.Context(), a.ToolType, &a.ID, exportType, sessionID(r))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(a, ext)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) zipBundle(ctx context.Context, a *domain.Artifact) ([]byte, error) {
	versions, err := h.artifacts.ListVersions(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	contents, err := export.Bundle(a, versions)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteZip(contents, a.UpdatedAt, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Notion

type notionExportRequest struct {
	ParentPageID string `json:"parentPageId"`
}

type notionExportResponse struct {
	URL string `json:"url"`
}

func (h *Handler) ExportToNotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if h.notion == nil {
		writeError(w, http.StatusServiceUnavailable, "notion_not_configured", "Notion export is not configured")
		return
	}

	var req notionExportRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	a, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to export to Notion")
		return
	}

	url, err := h.notion.ExportArtifact(r.Context(), a, req.ParentPageID)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to export to Notion")
		return
	}

	h.artifacts.RecordExport(r.Context(), a.ToolType, &a.ID, domain.ExportNotion, sessionID(r))
	writeJSON(w, http.StatusOK, notionExportResponse{URL: url})
}

type notionPagesResponse struct {
	Pages []notion.Page `json:"pages"`
}

func (h *Handler) SearchNotionPages(w http.ResponseWriter, r *http.Request) {
	if h.notion == nil {
		writeError(w, http.StatusServiceUnavailable, "notion_not_configured", "Notion export is not configured")
		return
	}

	pages, err := h.notion.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to search Notion pages")
		return
	}
	if pages == nil {
		pages = []notion.Page{}
	}
	writeJSON(w, http.StatusOK, notionPagesResponse{Pages: pages})
}

// Templates

type listTemplatesResponse struct {
	Templates []*domain.Template `json:"templates"`
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.artifacts.ListTemplates(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to list templates")
		return
	}
	if templates == nil {
		templates = []*domain.Template{}
	}
	writeJSON(w, http.StatusOK, listTemplatesResponse{Templates: templates})
}

type createTemplateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Idea        string  `json:"idea"`
	Category    string  `json:"category"`
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	t, err := h.artifacts.CreateTemplate(r.Context(), artifacts.TemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Idea:        req.Idea,
		Category:    req.Category,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.artifacts.DeleteTemplate(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err, "Failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analytics

type logExportRequest struct {
	ArtifactID *uuid.UUID `json:"artifactId"`
	ToolType   string     `json:"toolType"`
	ExportType string     `json:"exportType"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) LogExport(w http.ResponseWriter, r *http.Request) {
	var req logExportRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	if req.ExportType == "" {
		req.ExportType = string(domain.ExportMarkdown)
	}
	exportType, err := domain.ParseExportType(req.ExportType)
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to log export")
		return
	}

	var tool domain.ToolType
	if req.ToolType != "" {
		if tool, err = domain.ParseToolType(req.ToolType); err != nil {
			h.writeDomainError(w, r, err, "Failed to log export")
			return
		}
	}

	h.artifacts.RecordExport(r.Context(), tool, req.ArtifactID, exportType, sessionID(r))
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.artifacts.Summary(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, "Failed to get analytics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
