// Package api exposes the claim pipeline and decision store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/pipeline"
	"github.com/sells-group/claims-cli/internal/store"
)

// Version is reported by the health endpoint.
var Version = "dev"

const (
	serviceName    = "claims-cli"
	maxBodyBytes   = 1 << 20
	maxBatchClaims = 100
)

// ClaimRunner runs claims through the decision pipeline.
type ClaimRunner interface {
	RunRaw(ctx context.Context, raw map[string]any) (*model.Bundle, error)
	RunBatch(ctx context.Context, raws []map[string]any) []pipeline.BatchItem
	ProviderAvailable() bool
}

// DecisionStore is the part of the repository the API reads and overrides.
type DecisionStore interface {
	GetDecision(ctx context.Context, claimNumber string) (*model.DecisionRecord, error)
	ListDecisions(ctx context.Context, filter store.ListFilter) ([]model.DecisionRecord, error)
	CountDecisions(ctx context.Context) (int, error)
	OverrideDecision(ctx context.Context, claimNumber string, o model.Override) (*model.DecisionRecord, error)
	ListOverrides(ctx context.Context, claimNumber string) ([]model.OverrideAudit, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	runner ClaimRunner
	store  DecisionStore
}

// New creates an API. Both dependencies are required.
func New(runner ClaimRunner, st DecisionStore) *API {
	if runner == nil {
		panic(eris.New("api: claim runner is required"))
	}
	if st == nil {
		panic(eris.New("api: decision store is required"))
	}
	return &API{runner: runner, store: st}
}

// Router builds the full HTTP handler with middleware.
func (a *API) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, maxBodyBytes)
	})

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/health", a.handleHealth)
	r.Route("/api/v1/claims", func(r chi.Router) {
		r.Post("/process", a.handleProcess)
		r.Post("/batch", a.handleBatch)
		r.Get("/", a.handleList)
		r.Get("/{claim_number}", a.handleGet)
		r.Get("/{claim_number}/overrides", a.handleListOverrides)
		r.Post("/{claim_number}/override", a.handleOverride)
	})
}

type healthResponse struct {
	Status               string `json:"status"`
	Service              string `json:"service"`
	Version              string `json:"version"`
	AgenticModeAvailable bool   `json:"agentic_mode_available"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:               "healthy",
		Service:              serviceName,
		Version:              Version,
		AgenticModeAvailable: a.runner.ProviderAvailable(),
	})
}

// claimResponse reports one processed claim.
type claimResponse struct {
	ClaimNumber      string                `json:"claim_number"`
	Status           string                `json:"status"`
	Decision         *model.ClaimDecision  `json:"decision,omitempty"`
	FNOLSummary      *model.IntakeSummary  `json:"fnol_summary,omitempty"`
	Triage           *model.TriageDecision `json:"triage,omitempty"`
	FraudSignal      *model.FraudSignal    `json:"fraud_signal,omitempty"`
	Stages           []model.StageResult   `json:"stages,omitempty"`
	ProcessingTimeMs int64                 `json:"processing_time_ms,omitempty"`
	ErrorKind        model.ErrorKind       `json:"error_kind,omitempty"`
	Error            string                `json:"error,omitempty"`
}

func processedResponse(b *model.Bundle, elapsed time.Duration) claimResponse {
	return claimResponse{
		ClaimNumber:      b.Decision.ClaimNumber,
		Status:           "processed",
		Decision:         b.Decision,
		FNOLSummary:      b.FNOLSummary,
		Triage:           b.Triage,
		FraudSignal:      b.FraudSignal,
		Stages:           b.Stages,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

func (a *API) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimData map[string]any `json:"claim_data"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClaimData == nil {
		writeError(w, http.StatusBadRequest, "claim_data is required")
		return
	}

	start := time.Now()
	bundle, err := a.runner.RunRaw(r.Context(), req.ClaimData)
	if err != nil {
		writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processedResponse(bundle, time.Since(start)))
}

type batchResponse struct {
	TotalClaims int             `json:"total_claims"`
	Processed   int             `json:"processed"`
	Failed      int             `json:"failed"`
	Results     []claimResponse `json:"results"`
}

func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Claims []map[string]any `json:"claims"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Claims) > maxBatchClaims {
		writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds "+strconv.Itoa(maxBatchClaims)+" claims")
		return
	}

	start := time.Now()
	items := a.runner.RunBatch(r.Context(), req.Claims)
	elapsed := time.Since(start)

	resp := batchResponse{TotalClaims: len(req.Claims), Results: make([]claimResponse, 0, len(items))}
	resp.Processed, resp.Failed = pipeline.Summarize(items)
	for _, it := range items {
		if it.Status == pipeline.StatusOK {
			resp.Results = append(resp.Results, processedResponse(it.Bundle, elapsed))
			continue
		}
		resp.Results = append(resp.Results, claimResponse{
			ClaimNumber: it.ClaimNumber,
			Status:      pipeline.StatusFailed,
			ErrorKind:   it.ErrorKind,
			Error:       it.Error,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	claimNumber := chi.URLParam(r, "claim_number")
	rec, err := a.store.GetDecision(r.Context(), claimNumber)
	if err != nil {
		writeStoreError(w, r, claimNumber, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type listResponse struct {
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Claims []model.DecisionRecord `json:"claims"`
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := a.store.CountDecisions(r.Context())
	if err != nil {
		writeStoreError(w, r, "", err)
		return
	}
	recs, err := a.store.ListDecisions(r.Context(), store.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		writeStoreError(w, r, "", err)
		return
	}
	if recs == nil {
		recs = []model.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{Total: total, Limit: limit, Offset: offset, Claims: recs})
}

type overrideResponse struct {
	ClaimNumber string               `json:"claim_number"`
	Status      string               `json:"status"`
	Decision    *model.ClaimDecision `json:"decision"`
	Override    *model.OverrideAudit `json:"override"`
}

func (a *API) handleOverride(w http.ResponseWriter, r *http.Request) {
	claimNumber := chi.URLParam(r, "claim_number")

	var o model.Override
	if err := decodeBody(r, &o); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := o.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec, err := a.store.OverrideDecision(r.Context(), claimNumber, o)
	if err != nil {
		writeStoreError(w, r, claimNumber, err)
		return
	}
	zap.L().Info("api: decision overridden",
		zap.String("claim", claimNumber),
		zap.Bool("covered", o.Covered),
		zap.Float64("payout", o.RecommendedPayout),
	)
	writeJSON(w, http.StatusOK, overrideResponse{
		ClaimNumber: claimNumber,
		Status:      "overridden",
		Decision:    rec.Bundle.Decision,
		Override:    rec.Override,
	})
}

func (a *API) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	claimNumber := chi.URLParam(r, "claim_number")
	if _, err := a.store.GetDecision(r.Context(), claimNumber); err != nil {
		writeStoreError(w, r, claimNumber, err)
		return
	}
	audits, err := a.store.ListOverrides(r.Context(), claimNumber)
	if err != nil {
		writeStoreError(w, r, claimNumber, err)
		return
	}
	if audits == nil {
		audits = []model.OverrideAudit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_number": claimNumber, "overrides": audits})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return eris.Wrap(err, "invalid request body")
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

type errorResponse struct {
	Error       string          `json:"error"`
	Kind        model.ErrorKind `json:"kind,omitempty"`
	ClaimNumber string          `json:"claim_number,omitempty"`
}

// statusFor maps a classified run error onto an HTTP status.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindMalformedClaim:
		return http.StatusUnprocessableEntity
	case model.KindClaimNotFound:
		return http.StatusNotFound
	case model.KindTimeoutExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("api: claim run failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{
		Error:       err.Error(),
		Kind:        model.KindOf(err),
		ClaimNumber: model.ClaimNumberOf(err),
	})
}

func writeStoreError(w http.ResponseWriter, r *http.Request, claimNumber string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:       "claim " + claimNumber + " not found",
			Kind:        model.KindClaimNotFound,
			ClaimNumber: claimNumber,
		})
		return
	}
	zap.L().Error("api: store request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("claim", claimNumber),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// accessLog logs one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
