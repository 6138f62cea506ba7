// Package server exposes the tracker over HTTP: batch management, catalog
// reconciliation, roster and dashboard metrics.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"segmentation-tracker/internal/batches"
	"segmentation-tracker/internal/metrics"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/parsers"
	"segmentation-tracker/internal/reconciler"
	"segmentation-tracker/internal/roster"
	"segmentation-tracker/internal/store"
	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// DefaultCatalogLimit is the number of recent uploads check-mongo-files lists
const DefaultCatalogLimit = 100

// SeedSource reads the batch seed file
type SeedSource interface {
	ParseFile(ctx context.Context, path string) ([]*models.Batch, *parsers.ParseStats, error)
}

// Config for the HTTP API handler.
type Config struct {
	Batches    *batches.Service
	Metrics    *metrics.Service
	Roster     *roster.Service
	Reconciler *reconciler.ReconciliationService
	// Sync defaults to an orchestrator over Reconciler
	Sync *reconciler.SyncOrchestrator

	Seed     SeedSource
	SeedFile string
	// Expected lists the batch identifiers missing-batches checks for
	Expected []string

	// Stores are pinged by the health route, keyed by logical store name
	Stores map[string]store.Pinger

	BasePath     string
	Version      string
	CatalogLimit int
	Logger       logger.Logger
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError is the failure envelope shared by every route
type apiError struct {
	status  int
	Success bool           `json:"success"`
	Message string         `json:"error" example:"batch \"batch_9\" not found"`
	Kind    string         `json:"kind" example:"batch_not_found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

type handlers struct {
	cfg    Config
	logger logger.Logger
}

// New returns an HTTP handler exposing the tracker API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Batches == nil || cfg.Metrics == nil || cfg.Roster == nil || cfg.Reconciler == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "server", nil,
			fmt.Errorf("batches, metrics, roster and reconciler services are required"))
	}
	if cfg.Sync == nil {
		cfg.Sync = reconciler.NewSyncOrchestrator(cfg.Reconciler)
	}
	if cfg.Seed == nil {
		parser, err := parsers.NewSeedParser(nil)
		if err != nil {
			return nil, err
		}
		cfg.Seed = parser
	}
	if cfg.CatalogLimit <= 0 {
		cfg.CatalogLimit = DefaultCatalogLimit
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetGlobalLogger()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	h := &handlers{cfg: cfg, logger: cfg.Logger.WithComponent("http")}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(h.logRequests)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	hcfg := huma.DefaultConfig("Segmentation Tracker API", cfg.Version)
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = basePath + "/docs"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h.registerHealth(api)
	h.registerBatches(group)
	h.registerReconciliation(group)
	h.registerSeed(group)
	h.registerRoster(group)
	h.registerMetrics(group)

	return router, nil
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := h.logger.WithFields(logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	})
}

func newAPIError(status int, kind, message string, details map[string]any) huma.StatusError {
	if kind == "" {
		kind = defaultKindForStatus(status)
	}
	return &apiError{
		status:  status,
		Success: false,
		Message: message,
		Kind:    kind,
		Details: details,
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return newAPIError(http.StatusInternalServerError, string(apperrors.CodeUnexpectedError),
			"internal error", map[string]any{"error": err.Error()})
	}

	var details map[string]any
	if len(appErr.Context) > 0 || appErr.Suggestion != "" {
		details = make(map[string]any, len(appErr.Context)+1)
		for k, v := range appErr.Context {
			details[k] = v
		}
		if appErr.Suggestion != "" {
			details["suggestion"] = appErr.Suggestion
		}
	}
	return newAPIError(statusForError(appErr), string(appErr.Code), appErr.Message, details)
}

func statusForError(err *apperrors.AppError) int {
	switch err.Code {
	case apperrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeBatchNotFound:
		return http.StatusNotFound
	case apperrors.CodeDuplicateIdentifier:
		return http.StatusConflict
	}
	switch err.Category {
	case apperrors.CategoryValidation, apperrors.CategoryParse:
		return http.StatusBadRequest
	case apperrors.CategoryNotFound:
		return http.StatusNotFound
	case apperrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func defaultKindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return string(apperrors.CodeStoreUnavailable)
	case http.StatusInternalServerError:
		return string(apperrors.CodeUnexpectedError)
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func (h *handlers) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Pings every configured store. Responds 503 when any of them is unreachable.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Status int
		Body   HealthResponse `json:"body"`
	}, error) {
		resp := &struct {
			Status int
			Body   HealthResponse `json:"body"`
		}{Status: http.StatusOK, Body: HealthResponse{Status: "ok", Stores: map[string]string{}}}

		for name, pinger := range h.cfg.Stores {
			if err := pinger.Ping(ctx); err != nil {
				h.logger.WithError(err).WithField("store", name).Warn("Store ping failed")
				resp.Body.Stores[name] = "unavailable: " + err.Error()
				resp.Body.Status = "degraded"
				resp.Status = http.StatusServiceUnavailable
				continue
			}
			resp.Body.Stores[name] = "ok"
		}
		return resp, nil
	})
}

func (h *handlers) registerBatches(api huma.API) {
	type batchPath struct {
		ID string `path:"id" example:"batch_1"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-batches",
		Method:      http.MethodGet,
		Path:        "/batches",
		Summary:     "List batches",
		Description: "Batches sorted by identifier. per_page is clamped to the configured limits.",
	}, func(ctx context.Context, input *struct {
		Page    int `query:"page" default:"1"`
		PerPage int `query:"per_page"`
	}) (*struct {
		Body *batches.Page `json:"body"`
	}, error) {
		page, err := h.cfg.Batches.List(ctx, input.Page, input.PerPage)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *batches.Page `json:"body"`
		}{Body: page}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-batch",
		Method:      http.MethodGet,
		Path:        "/batches/{id}",
		Summary:     "Get batch",
	}, func(ctx context.Context, input *batchPath) (*struct {
		Body *models.Batch `json:"body"`
	}, error) {
		b, err := h.cfg.Batches.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *models.Batch `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-batch",
		Method:        http.MethodPost,
		Path:          "/batches",
		Summary:       "Create batch",
		Description:   "Without an id the next free batch_N is used.",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateBatchRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		req := input.Body
		b, err := h.cfg.Batches.Create(ctx, batches.CreateInput{
			ID:            req.ID,
			Assignee:      req.Assignee,
			Folder:        req.Folder,
			Tasks:         req.Tasks,
			Status:        models.Status(req.Status),
			AssignedAt:    req.AssignedAt,
			DueDate:       req.DueDate,
			Priority:      req.Priority,
			MongoUploaded: req.MongoUploaded,
			Comments:      req.Comments,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: BatchResponse{Success: true, Message: fmt.Sprintf("Batch %s created", b.ID), Batch: b}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-batch",
		Method:      http.MethodPut,
		Path:        "/batches/{id}",
		Summary:     "Update batch",
		Description: "Partial update. A null or blank assignee unassigns the batch.",
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateBatchRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		patch := patchFromRequest(&input.Body, rawBodyMap(ctx))
		b, err := h.cfg.Batches.Update(ctx, input.ID, patch)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: BatchResponse{Success: true, Message: fmt.Sprintf("Batch %s updated", b.ID), Batch: b}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-batch-id",
		Method:      http.MethodPut,
		Path:        "/batches/{id}/change-id",
		Summary:     "Change batch identifier",
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ChangeIDRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		b, err := h.cfg.Batches.Rename(ctx, input.ID, input.Body.NewID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: BatchResponse{
			Success: true,
			Message: fmt.Sprintf("Batch %s renamed to %s", input.ID, b.ID),
			Batch:   b,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-batch",
		Method:      http.MethodDelete,
		Path:        "/batches/{id}",
		Summary:     "Delete batch",
	}, func(ctx context.Context, input *batchPath) (*struct {
		Body DeleteBatchResponse `json:"body"`
	}, error) {
		deleted, err := h.cfg.Batches.Delete(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteBatchResponse `json:"body"`
		}{Body: DeleteBatchResponse{
			Success:      true,
			Message:      fmt.Sprintf("Batch %s deleted", deleted.ID),
			DeletedBatch: deleted,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "missing-batches",
		Method:      http.MethodGet,
		Path:        "/missing-batches",
		Summary:     "Expected batches without a record",
		Description: "expected is a comma-separated list; it defaults to the configured list.",
	}, func(ctx context.Context, input *struct {
		Expected string `query:"expected"`
	}) (*struct {
		Body MissingResponse `json:"body"`
	}, error) {
		expected := h.cfg.Expected
		if input.Expected != "" {
			expected = splitList(input.Expected)
		}
		missing, err := h.cfg.Batches.Missing(ctx, expected)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissingResponse `json:"body"`
		}{Body: MissingResponse{
			Success:       true,
			Missing:       missing,
			Count:         len(missing),
			ExpectedTotal: len(expected),
		}}, nil
	})
}

func (h *handlers) registerReconciliation(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "sync-batch-files",
		Method:      http.MethodPost,
		Path:        "/sync-batch-files",
		Summary:     "Reconcile batches with the file catalog",
	}, func(ctx context.Context, input *struct {
		Body *SyncRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body *SyncResponse `json:"body"`
	}, error) {
		opts := reconciler.SyncOptions{}
		if input.Body != nil {
			opts.AutoCreate = input.Body.AutoCreate
			opts.DryRun = input.Body.DryRun
		}
		result, err := h.cfg.Sync.Sync(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *SyncResponse `json:"body"`
		}{Body: mapSync(result, opts.DryRun)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auto-create-batches",
		Method:      http.MethodPost,
		Path:        "/auto-create-batches",
		Summary:     "Create batches named by catalog files",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *AutoCreateResponse `json:"body"`
	}, error) {
		result, err := h.cfg.Reconciler.AutoCreate(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *AutoCreateResponse `json:"body"`
		}{Body: mapAutoCreate(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-mongo-files",
		Method:      http.MethodGet,
		Path:        "/check-mongo-files",
		Summary:     "Inspect the file catalog",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0"`
	}) (*struct {
		Body *CatalogResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit == 0 {
			limit = h.cfg.CatalogLimit
		}
		inspection, err := h.cfg.Reconciler.InspectCatalog(ctx, limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *CatalogResponse `json:"body"`
		}{Body: mapCatalog(inspection)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "batch-files",
		Method:      http.MethodGet,
		Path:        "/batch-files/{id}",
		Summary:     "Catalog files matching a batch",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body *reconciler.BatchFilesReport `json:"body"`
	}, error) {
		report, err := h.cfg.Reconciler.BatchFiles(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *reconciler.BatchFilesReport `json:"body"`
		}{Body: report}, nil
	})
}

func (h *handlers) registerSeed(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "init-batches",
		Method:      http.MethodPost,
		Path:        "/init-batches",
		Summary:     "Load batches from the seed file",
		Description: "Does nothing when batches exist unless force is set.",
	}, func(ctx context.Context, input *struct {
		Body *SeedRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body *SeedResponse `json:"body"`
	}, error) {
		force := input.Body != nil && input.Body.Force
		resp, err := h.loadSeed(ctx, force)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *SeedResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-batches",
		Method:      http.MethodPost,
		Path:        "/reset-batches",
		Summary:     "Replace every batch with the seed file contents",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *SeedResponse `json:"body"`
	}, error) {
		resp, err := h.loadSeed(ctx, true)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *SeedResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func (h *handlers) loadSeed(ctx context.Context, force bool) (*SeedResponse, error) {
	if h.cfg.SeedFile == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "batches.seed_file", nil, nil).
			WithSuggestion("set batches.seed_file to the path of batches.json")
	}
	seed, stats, err := h.cfg.Seed.ParseFile(ctx, h.cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	result, err := h.cfg.Batches.LoadSeed(ctx, seed, force)
	if err != nil {
		return nil, err
	}
	return mapSeed(result, stats), nil
}

func (h *handlers) registerRoster(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-segmentadores",
		Method:      http.MethodGet,
		Path:        "/segmentadores",
		Summary:     "List roster members",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RosterResponse `json:"body"`
	}, error) {
		members, err := h.cfg.Roster.Members(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.Name
		}
		if members == nil {
			members = []models.TeamMember{}
		}
		return &struct {
			Body RosterResponse `json:"body"`
		}{Body: RosterResponse{Success: true, Segmentadores: names, Members: members, Total: len(names)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-segmentador",
		Method:        http.MethodPost,
		Path:          "/add-segmentador",
		Summary:       "Add roster member",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body AddMemberRequest `json:"body"`
	}) (*struct {
		Body AddMemberResponse `json:"body"`
	}, error) {
		member, err := h.cfg.Roster.Add(ctx, input.Body.Name, input.Body.Role, input.Body.Email)
		if err != nil {
			return nil, handleError(err)
		}
		members, err := h.cfg.Roster.Members(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AddMemberResponse `json:"body"`
		}{Body: AddMemberResponse{
			Success:     true,
			Message:     fmt.Sprintf("%s added to the team", member.Name),
			Segmentador: member,
			TeamSize:    len(members),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assignee-analysis",
		Method:      http.MethodGet,
		Path:        "/assignees/analysis",
		Summary:     "Batch distribution by roster membership",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *batches.AssigneeAnalysis `json:"body"`
	}, error) {
		analysis, err := h.cfg.Batches.AnalyzeAssignees(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *batches.AssigneeAnalysis `json:"body"`
		}{Body: analysis}, nil
	})
}

func (h *handlers) registerMetrics(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "metrics-overview",
		Method:      http.MethodGet,
		Path:        "/metrics/overview",
		Summary:     "Global progress summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *metrics.OverviewStats `json:"body"`
	}, error) {
		stats, err := h.cfg.Metrics.Overview(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *metrics.OverviewStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "metrics-team",
		Method:      http.MethodGet,
		Path:        "/metrics/team",
		Summary:     "Per-assignee rollup",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []metrics.TeamMemberStats `json:"body"`
	}, error) {
		team, err := h.cfg.Metrics.TeamMetrics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []metrics.TeamMemberStats `json:"body"`
		}{Body: team}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "metrics-progress",
		Method:      http.MethodGet,
		Path:        "/metrics/progress",
		Summary:     "Daily progress series",
		Description: "from and to are YYYY-MM-DD. assignees is comma-separated; present but empty is rejected.",
	}, func(ctx context.Context, input *struct {
		From      string `query:"from" example:"2025-03-01"`
		To        string `query:"to" example:"2025-03-31"`
		Assignees string `query:"assignees" example:"Flor,Unassigned"`
	}) (*struct {
		Body []metrics.DatePoint `json:"body"`
	}, error) {
		filter := &metrics.TimeSeriesFilter{From: input.From, To: input.To}
		if queryHas(ctx, "assignees") {
			filter.Assignees = splitList(input.Assignees)
		}
		points, err := h.cfg.Metrics.TimeSeries(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []metrics.DatePoint `json:"body"`
		}{Body: points}, nil
	})
}

// patchFromRequest converts an update body into a store patch. raw is the
// decoded top level of the body, used to tell an explicit null from an
// absent field.
func patchFromRequest(req *UpdateBatchRequest, raw map[string]json.RawMessage) *store.BatchPatch {
	patch := &store.BatchPatch{
		Folder:        req.Folder,
		Tasks:         req.Tasks,
		Comments:      req.Comments,
		MongoUploaded: req.MongoUploaded,
	}
	if _, ok := raw["assignee"]; ok {
		patch.AssigneeSet = true
		patch.Assignee = req.Assignee
	}
	if req.Status != nil {
		status := models.Status(*req.Status)
		patch.Status = &status
	}

	if md := req.Metadata; md != nil {
		patch.AssignedAt = md.AssignedAt
		patch.DueDate = md.DueDate
		patch.Priority = md.Priority
		if _, ok := nestedRaw(raw, "metadata")["reviewed_at"]; ok {
			patch.ReviewedAtSet = true
			patch.ReviewedAt = md.ReviewedAt
		}
	}
	if req.AssignedAt != nil {
		patch.AssignedAt = req.AssignedAt
	}
	if req.DueDate != nil {
		patch.DueDate = req.DueDate
	}
	if req.Priority != nil {
		patch.Priority = req.Priority
	}
	return patch
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	return nil
}

func rawBodyMap(ctx context.Context) map[string]json.RawMessage {
	data := bodyBytes(ctx)
	if len(data) == 0 {
		return map[string]json.RawMessage{}
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return map[string]json.RawMessage{}
	}
	return outer
}

func nestedRaw(raw map[string]json.RawMessage, key string) map[string]json.RawMessage {
	var inner map[string]json.RawMessage
	if data, ok := raw[key]; ok {
		_ = json.Unmarshal(data, &inner)
	}
	return inner
}

func queryHas(ctx context.Context, name string) bool {
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return false
	}
	return req.URL.Query().Has(name)
}

// splitList splits a comma-separated value, dropping blank items. The
// result is never nil.
func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func syncMessage(r *reconciler.ReconciliationReport) string {
	msg := fmt.Sprintf("Updated %d of %d batches", r.BatchesUpdated, r.TotalBatches)
	if r.BatchesFailed > 0 {
		msg += fmt.Sprintf(", %d failed", r.BatchesFailed)
	}
	return msg
}

func autoCreateMessage(r *reconciler.AutoCreateResult) string {
	if len(r.Created) == 0 {
		return "No new batches found in the catalog"
	}
	return fmt.Sprintf("Created %s from catalog files", pluralize(len(r.Created), "batch", "batches"))
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
