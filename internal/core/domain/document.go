package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusRejected DocumentStatus = "rejected"
)

// IsTerminal reports whether no further workflow transition is possible.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseDocumentStatus accepts a case-insensitive status name.
func ParseDocumentStatus(raw string) (DocumentStatus, bool) {
	switch DocumentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusRejected:
		return StatusRejected, true
	default:
		return "", false
	}
}

type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

var allowedExtensions = map[string]FileKind{
	".pdf":  FileKindPDF,
	".png":  FileKindImage,
	".jpg":  FileKindImage,
	".jpeg": FileKindImage,
}

// FileKindOf resolves the upload kind from the filename extension.
func FileKindOf(filename string) (FileKind, bool) {
	kind, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return kind, ok
}

type Document struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	Vendor        *string        `json:"vendor"`
	InvoiceNumber *string        `json:"invoice_number"`
	Date          *time.Time     `json:"date"`
	Amount        *float64       `json:"amount"`
	VAT           *float64       `json:"vat"`
	Status        DocumentStatus `json:"status"`
	CurrentStep   int            `json:"current_step"`
	IsDuplicate   bool           `json:"is_duplicate"`
	RawText       string         `json:"raw_text,omitempty"`
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Kind is derived from the stored filename; uploads are validated before a record exists.
func (d *Document) Kind() FileKind {
	kind, _ := FileKindOf(d.Filename)
	return kind
}

// FieldSet is the parser output. Nil means the field was not found.
type FieldSet struct {
	Vendor        *string  `json:"vendor"`
	InvoiceNumber *string  `json:"invoice_number"`
	Date          *string  `json:"date"`
	Amount        *float64 `json:"amount"`
	VAT           *float64 `json:"vat"`
}

func (f FieldSet) Empty() bool {
	return f.Vendor == nil && f.InvoiceNumber == nil && f.Date == nil && f.Amount == nil && f.VAT == nil
}

type Page struct {
	Skip  int
	Limit int
}
