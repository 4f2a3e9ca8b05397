package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const serviceName = "api"

// Metrics is the subset of the HTTP metrics the router records into. Nil disables metrics.
type Metrics interface {
	Handler() http.Handler
	Middleware(service string, next http.Handler) http.Handler
	RecordRejected(reason string)
	RecordUpload(err error)
	RecordApprovalAction(action string, err error)
	RecordExport(format string)
}

type Deps struct {
	Ingestor  ports.DocumentIngestor
	Documents ports.DocumentReader
	Workflow  ports.ApprovalWorkflow
	Reports   ports.ReportService
	Metrics   Metrics
}

type Router struct {
	ingestor  ports.DocumentIngestor
	documents ports.DocumentReader
	workflow  ports.ApprovalWorkflow
	reports   ports.ReportService
	metrics   Metrics

	uploadMaxBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	inFlightWait   time.Duration
}

func NewRouter(cfg config.Config, deps Deps) *Router {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Router{
		ingestor:       deps.Ingestor,
		documents:      deps.Documents,
		workflow:       deps.Workflow,
		reports:        deps.Reports,
		metrics:        metrics,
		uploadMaxBytes: cfg.UploadMaxBytes,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		inFlightWait:   cfg.InFlightWait(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	mux.HandleFunc("POST /v1/documents/{id}/approve", rt.approveDocument)
	mux.HandleFunc("GET /v1/documents/{id}/approvals", rt.listApprovals)

	mux.HandleFunc("GET /v1/reports/spend-summary", rt.spendSummary)
	mux.HandleFunc("GET /v1/reports/vendor-analysis", rt.vendorAnalysis)
	mux.HandleFunc("GET /v1/reports/tax-vat", rt.taxVAT)
	mux.HandleFunc("GET /v1/reports/list", rt.reportList)
	mux.HandleFunc("GET /v1/reports/insights", rt.insights)
	mux.HandleFunc("GET /v1/reports/export/{format}", rt.exportReport)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.inFlightWait, rt.metrics.RecordRejected)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.metrics.RecordRejected)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type noopMetrics struct{}

func (noopMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (noopMetrics) Middleware(_ string, next http.Handler) http.Handler { return next }
func (noopMetrics) RecordRejected(string)                                {}
func (noopMetrics) RecordUpload(error)                                   {}
func (noopMetrics) RecordApprovalAction(string, error)                   {}
func (noopMetrics) RecordExport(string)                                  {}
