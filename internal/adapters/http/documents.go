package httpadapter

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// multipartMemory caps the in-memory part of a parsed form; larger files spill to disk.
const multipartMemory = 8 << 20

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.uploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			rt.metrics.RecordUpload(err)
			writeError(w, err)
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		rt.metrics.RecordUpload(err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileHeader.Filename))); guessed != "" {
			mimeType = guessed
		}
	}

	doc, err := rt.ingestor.Upload(r.Context(), fileHeader.Filename, mimeType, file)
	rt.metrics.RecordUpload(err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := rt.documents.List(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// pageFromQuery leaves defaults and caps to the use cases; only malformed values fail.
func pageFromQuery(r *http.Request) (domain.Page, error) {
	var page domain.Page
	query := r.URL.Query()
	for name, dst := range map[string]*int{"skip": &page.Skip, "limit": &page.Limit} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, domain.WrapError(domain.ErrInvalidInput, "parse paging", fmt.Errorf("%s must be a non-negative integer", name))
		}
		*dst = n
	}
	return page, nil
}
