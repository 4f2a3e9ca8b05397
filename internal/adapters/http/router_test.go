package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/domain"
)

type ingestFake struct {
	err       error
	gotName   string
	gotMime   string
	gotLength int
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotName, f.gotMime, f.gotLength = filename, mimeType, len(raw)

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_" + filename,
		Status:      domain.StatusPending,
		CurrentStep: domain.FirstStep,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type docsFake struct {
	err     error
	gotPage domain.Page
}

func (f *docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "a.pdf", Status: domain.StatusPending, CurrentStep: 1}, nil
}

func (f *docsFake) List(_ context.Context, page domain.Page) ([]domain.Document, error) {
	f.gotPage = page
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

type workflowFake struct {
	err      error
	gotID    string
	gotActor domain.Actor
	gotAct   domain.ApprovalAction
	gotNote  string
}

func (f *workflowFake) Act(_ context.Context, id string, actor domain.Actor, action domain.ApprovalAction, comment string) (domain.WorkflowState, error) {
	f.gotID, f.gotActor, f.gotAct, f.gotNote = id, actor, action, comment
	if f.err != nil {
		return domain.WorkflowState{}, f.err
	}
	return domain.WorkflowState{Status: domain.StatusPending, CurrentStep: 2}, nil
}

func (f *workflowFake) ListApprovals(_ context.Context, id string) ([]domain.Approval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Approval{{ID: "a-1", DocumentID: id, Step: 1, ApproverID: "u-1", ApproverRole: domain.RoleReviewer, Action: domain.ActionApprove}}, nil
}

type reportsFake struct {
	gotFilter      domain.ReportFilter
	gotGranularity domain.TrendGranularity
	exportErr      error
}

func (f *reportsFake) SpendSummary(_ context.Context, filter domain.ReportFilter) (*domain.SpendSummary, error) {
	f.gotFilter = filter
	return &domain.SpendSummary{Total: 300, Count: 2, TopVendors: []domain.VendorSpend{{Vendor: "Acme", Total: 300}}}, nil
}

func (f *reportsFake) VendorAnalysis(_ context.Context, filter domain.ReportFilter) (*domain.VendorAnalysis, error) {
	f.gotFilter = filter
	return &domain.VendorAnalysis{}, nil
}

func (f *reportsFake) TaxVAT(_ context.Context, filter domain.ReportFilter) (*domain.TaxVATReport, error) {
	f.gotFilter = filter
	return &domain.TaxVATReport{}, nil
}

func (f *reportsFake) List(_ context.Context, filter domain.ReportFilter, _ domain.Page) ([]domain.ReportRow, error) {
	f.gotFilter = filter
	return nil, nil
}

func (f *reportsFake) Insights(_ context.Context, filter domain.ReportFilter, granularity domain.TrendGranularity) (*domain.Insights, error) {
	f.gotFilter, f.gotGranularity = filter, granularity
	return &domain.Insights{}, nil
}

func (f *reportsFake) Export(_ context.Context, filter domain.ReportFilter, format domain.ExportFormat) (*domain.ExportFile, error) {
	f.gotFilter = filter
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return &domain.ExportFile{Filename: "report." + string(format), ContentType: "text/csv", Data: []byte("vendor\nAcme\n")}, nil
}

func testDeps() Deps {
	return Deps{
		Ingestor:  &ingestFake{},
		Documents: &docsFake{},
		Workflow:  &workflowFake{},
		Reports:   &reportsFake{},
	}
}

func newTestHandler(cfg config.Config, deps Deps) http.Handler {
	return NewRouter(cfg, deps).Handler()
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, testDeps()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	deps := testDeps()
	ingest := deps.Ingestor.(*ingestFake)
	handler := newTestHandler(config.Config{UploadMaxBytes: 1 << 20}, deps)

	body, contentType := multipartUpload(t, "file", "invoice.pdf", []byte("%PDF-1.4 test"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc map[string]any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc["id"] != "doc-1" || doc["status"] != "pending" || doc["current_step"] != float64(1) {
		t.Fatalf("unexpected response: %+v", doc)
	}
	if ingest.gotName != "invoice.pdf" || ingest.gotMime != "application/pdf" || ingest.gotLength != len("%PDF-1.4 test") {
		t.Fatalf("unexpected upload call: %+v", ingest)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{}, testDeps())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentMapsInvalidExtensionTo400(t *testing.T) {
	deps := testDeps()
	deps.Ingestor = &ingestFake{err: domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("unsupported"))}
	handler := newTestHandler(config.Config{}, deps)

	body, contentType := multipartUpload(t, "file", "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	deps := testDeps()
	deps.Documents = &docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))}
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListDocumentsPaging(t *testing.T) {
	deps := testDeps()
	docs := deps.Documents.(*docsFake)
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?skip=10&limit=5", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if docs.gotPage != (domain.Page{Skip: 10, Limit: 5}) {
		t.Fatalf("unexpected page %+v", docs.gotPage)
	}
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?limit=-1", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", res.Code)
	}
}

func approveRequestFor(t *testing.T, id, userID, role, payload string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/"+id+"/approve", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	if role != "" {
		req.Header.Set(userRoleHeader, role)
	}
	return req
}

func TestApproveDocumentPassesActor(t *testing.T) {
	deps := testDeps()
	workflow := deps.Workflow.(*workflowFake)
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, approveRequestFor(t, "doc-1", "u-7", "Reviewer", `{"action":"approve","comment":" looks fine "}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var state domain.WorkflowState
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if state.CurrentStep != 2 || state.Status != domain.StatusPending {
		t.Fatalf("unexpected state %+v", state)
	}
	if workflow.gotID != "doc-1" || workflow.gotActor != (domain.Actor{ID: "u-7", Role: domain.RoleReviewer}) {
		t.Fatalf("unexpected call: id=%q actor=%+v", workflow.gotID, workflow.gotActor)
	}
	if workflow.gotAct != domain.ActionApprove || workflow.gotNote != "looks fine" {
		t.Fatalf("unexpected action/comment %q %q", workflow.gotAct, workflow.gotNote)
	}
}

func TestApproveDocumentErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		role    string
		payload string
		err     error
		want    int
	}{
		{"missing identity", "", "", `{"action":"approve"}`, nil, http.StatusUnauthorized},
		{"unknown role", "u-1", "intern", `{"action":"approve"}`, nil, http.StatusForbidden},
		{"bad json", "u-1", "reviewer", `{`, nil, http.StatusBadRequest},
		{"unknown action", "u-1", "reviewer", `{"action":"escalate"}`, nil, http.StatusBadRequest},
		{"wrong role for step", "u-1", "viewer", `{"action":"approve"}`, domain.WrapError(domain.ErrForbidden, "approval action", errors.New("role")), http.StatusForbidden},
		{"terminal document", "u-1", "admin", `{"action":"reject"}`, domain.WrapError(domain.ErrConflict, "approval action", errors.New("done")), http.StatusConflict},
		{"missing document", "u-1", "admin", `{"action":"approve"}`, domain.WrapError(domain.ErrDocumentNotFound, "load", errors.New("id")), http.StatusNotFound},
		{"storage outage", "u-1", "admin", `{"action":"approve"}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Workflow = &workflowFake{err: tt.err}
			res := httptest.NewRecorder()
			newTestHandler(config.Config{}, deps).ServeHTTP(res, approveRequestFor(t, "doc-1", tt.userID, tt.role, tt.payload))
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, res.Code, res.Body.String())
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(res.Body.String(), "db down") {
				t.Fatalf("internal error text leaked: %s", res.Body.String())
			}
		})
	}
}

func TestListApprovals(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, testDeps()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/approvals", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var approvals []domain.Approval
	if err := json.NewDecoder(res.Body).Decode(&approvals); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(approvals) != 1 || approvals[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected approvals %+v", approvals)
	}
}

func TestReportFilterParsing(t *testing.T) {
	deps := testDeps()
	reports := deps.Reports.(*reportsFake)
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet,
		"/v1/reports/spend-summary?start=2026-01-01&end=2026-01-31&vendor=acme&status=APPROVED&amount_min=10", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	f := reports.gotFilter
	if f.CreatedFrom == nil || f.CreatedTo == nil || f.Vendor != "acme" || f.Status != domain.StatusApproved {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f.AmountMin == nil || *f.AmountMin != 10 || f.AmountMax != nil {
		t.Fatalf("unexpected amount bounds %+v", f)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/tax-vat?start=yesterday", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start, got %d", res.Code)
	}
}

func TestInsightsGranularity(t *testing.T) {
	deps := testDeps()
	reports := deps.Reports.(*reportsFake)
	handler := newTestHandler(config.Config{}, deps)

	for query, want := range map[string]domain.TrendGranularity{
		"?granularity=hour": domain.GranularityHour,
		"?granularity=year": domain.GranularityDay,
		"":                  domain.GranularityDay,
	} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/insights"+query, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", query, res.Code)
		}
		if reports.gotGranularity != want {
			t.Fatalf("%q: expected %q, got %q", query, want, reports.gotGranularity)
		}
	}
}

func TestExportReportIsAttachment(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, testDeps()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/export/csv", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Disposition"); got != `attachment; filename="report.csv"` {
		t.Fatalf("unexpected Content-Disposition %q", got)
	}
	if res.Header().Get("Content-Type") != "text/csv" || res.Body.String() != "vendor\nAcme\n" {
		t.Fatalf("unexpected export response %q %q", res.Header().Get("Content-Type"), res.Body.String())
	}
}

func TestExportUnknownFormatIs400(t *testing.T) {
	deps := testDeps()
	deps.Reports = &reportsFake{exportErr: domain.WrapError(domain.ErrInvalidInput, "export report", errors.New("format pdf"))}
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, deps).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/export/pdf", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrTemporary, "submit", errors.New("queue full")), http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
