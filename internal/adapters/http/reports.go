package httpadapter

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/usecase"
)

func reportFilterFromQuery(r *http.Request) (domain.ReportFilter, error) {
	q := r.URL.Query()
	return usecase.BuildReportFilter(usecase.ReportQuery{
		Start:     q.Get("start"),
		End:       q.Get("end"),
		Vendor:    q.Get("vendor"),
		Status:    q.Get("status"),
		AmountMin: q.Get("amount_min"),
		AmountMax: q.Get("amount_max"),
	})
}

func (rt *Router) spendSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := rt.reports.SpendSummary(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) vendorAnalysis(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	analysis, err := rt.reports.VendorAnalysis(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) taxVAT(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := rt.reports.TaxVAT(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) reportList(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := rt.reports.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.ReportRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (rt *Router) insights(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	granularity := domain.ParseGranularity(r.URL.Query().Get("granularity"))
	insights, err := rt.reports.Insights(r.Context(), filter, granularity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := domain.ExportFormat(r.PathValue("format"))
	file, err := rt.reports.Export(r.Context(), filter, format)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.RecordExport(string(format))

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
