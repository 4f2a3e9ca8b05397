package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const documentColumns = `id, filename, mime_type, storage_path, vendor, invoice_number, invoice_date, amount, vat,
	status, current_step, is_duplicate, raw_text, version, created_at, updated_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the document repository and transactor over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Create(ctx context.Context, doc *domain.Document) error {
	d := s.dialect
	_, err := s.db.ExecContext(ctx, d.rebind(`
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`),
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath,
		nullString(doc.Vendor), nullString(doc.InvoiceNumber), d.nullableTimeArg(doc.Date),
		nullFloat(doc.Amount), nullFloat(doc.VAT),
		string(doc.Status), doc.CurrentStep, doc.IsDuplicate, doc.RawText, doc.Version,
		d.timeArg(doc.CreatedAt), d.timeArg(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return getDocument(ctx, s.db, s.dialect, id, false)
}

func (s *Store) List(ctx context.Context, page domain.Page) ([]domain.Document, error) {
	query, args := s.dialect.pagedQuery(`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`, nil, page)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collectDocuments(rows)
}

func (s *Store) Report(ctx context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.Document, error) {
	query, args := buildReportQuery(s.dialect, filter, page)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("report documents: %w", err)
	}
	return collectDocuments(rows)
}

func (s *Store) ListApprovals(ctx context.Context, documentID string) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
SELECT id, document_id, step, approver_id, approver_role, action, comment, created_at
FROM approvals
WHERE document_id = $1
ORDER BY created_at, step
`), documentID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Approval, 0)
	for rows.Next() {
		var (
			a         domain.Approval
			role      string
			action    string
			createdAt flexTime
		)
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.Step, &a.ApproverID, &role, &action, &a.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		a.ApproverRole = domain.Role(role)
		a.Action = domain.ApprovalAction(action)
		a.CreatedAt = createdAt.Time
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return out, nil
}

func getDocument(ctx context.Context, q querier, d Dialect, id string, lock bool) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	op := "get document"
	if lock {
		query += d.lockClause()
		op = "get document for update"
	}
	doc, err := scanDocument(q.QueryRowContext(ctx, d.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc           domain.Document
		vendor        sql.NullString
		invoiceNumber sql.NullString
		invoiceDate   flexTime
		amount        sql.NullFloat64
		vat           sql.NullFloat64
		status        string
		rawText       sql.NullString
		createdAt     flexTime
		updatedAt     flexTime
	)
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&vendor, &invoiceNumber, &invoiceDate, &amount, &vat,
		&status, &doc.CurrentStep, &doc.IsDuplicate, &rawText, &doc.Version,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Vendor = stringPtr(vendor)
	doc.InvoiceNumber = stringPtr(invoiceNumber)
	doc.Date = invoiceDate.ptr()
	doc.Amount = floatPtr(amount)
	doc.VAT = floatPtr(vat)
	doc.Status = domain.DocumentStatus(status)
	doc.RawText = rawText.String
	doc.CreatedAt = createdAt.Time
	doc.UpdatedAt = updatedAt.Time
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	defer rows.Close()
	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (d Dialect) pagedQuery(query string, args []any, page domain.Page) (string, []any) {
	if page.Limit > 0 {
		args = append(args, page.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if page.Skip > 0 {
		if page.Limit <= 0 && d == SQLite {
			// sqlite only accepts OFFSET after a LIMIT.
			query += " LIMIT -1"
		}
		args = append(args, page.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return domain.StringPtr(v.String)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Float64Ptr(v.Float64)
}
