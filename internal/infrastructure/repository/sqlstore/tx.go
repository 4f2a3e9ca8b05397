package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.DocumentTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(ctx, &documentTx{tx: sqlTx, store: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type documentTx struct {
	tx    *sql.Tx
	store *Store
}

func (t *documentTx) GetForUpdate(ctx context.Context, id string) (*domain.Document, error) {
	return getDocument(ctx, t.tx, t.store.dialect, id, true)
}

// SaveExtraction writes extracted fields. The duplicate flag can only be raised here;
// workflow columns belong to UpdateWorkflow.
func (t *documentTx) SaveExtraction(ctx context.Context, doc *domain.Document) error {
	d := t.store.dialect
	now := t.store.now()
	res, err := t.tx.ExecContext(ctx, d.rebind(`
UPDATE documents
SET vendor = $1, invoice_number = $2, invoice_date = $3, amount = $4, vat = $5,
	raw_text = $6, is_duplicate = (is_duplicate OR $7), updated_at = $8
WHERE id = $9
`),
		nullString(doc.Vendor), nullString(doc.InvoiceNumber), d.nullableTimeArg(doc.Date),
		nullFloat(doc.Amount), nullFloat(doc.VAT), doc.RawText, doc.IsDuplicate, d.timeArg(now), doc.ID,
	)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	if err := expectOneRow(res, "save extraction", doc.ID, domain.ErrDocumentNotFound); err != nil {
		return err
	}
	doc.UpdatedAt = now
	return nil
}

func (t *documentTx) UpdateWorkflow(ctx context.Context, doc *domain.Document) error {
	d := t.store.dialect
	now := t.store.now()
	res, err := t.tx.ExecContext(ctx, d.rebind(`
UPDATE documents
SET status = $1, current_step = $2, version = version + 1, updated_at = $3
WHERE id = $4 AND version = $5
`), string(doc.Status), doc.CurrentStep, d.timeArg(now), doc.ID, doc.Version)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if err := expectOneRow(res, "update workflow", doc.ID, domain.ErrConflict); err != nil {
		return err
	}
	doc.Version++
	doc.UpdatedAt = now
	return nil
}

func (t *documentTx) AppendApproval(ctx context.Context, approval *domain.Approval) error {
	d := t.store.dialect
	_, err := t.tx.ExecContext(ctx, d.rebind(`
INSERT INTO approvals (id, document_id, step, approver_id, approver_role, action, comment, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`),
		approval.ID, approval.DocumentID, approval.Step, approval.ApproverID,
		string(approval.ApproverRole), string(approval.Action), approval.Comment, d.timeArg(approval.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append approval: %w", err)
	}
	return nil
}

func (t *documentTx) ExistsByInvoiceNumber(ctx context.Context, invoiceNumber, excludeID string) (bool, error) {
	return t.exists(ctx, "duplicate by invoice number",
		`SELECT 1 FROM documents WHERE invoice_number = $1 AND id <> $2 LIMIT 1`,
		invoiceNumber, excludeID)
}

func (t *documentTx) ExistsByVendorAmount(ctx context.Context, vendor string, amount float64, excludeID string) (bool, error) {
	return t.exists(ctx, "duplicate by vendor and amount",
		`SELECT 1 FROM documents WHERE vendor = $1 AND amount = $2 AND id <> $3 LIMIT 1`,
		vendor, amount, excludeID)
}

func (t *documentTx) exists(ctx context.Context, op, query string, args ...any) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, t.store.dialect.rebind(query), args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%s: %w", op, err)
	default:
		return true, nil
	}
}

func expectOneRow(res sql.Result, op, id string, kind error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(kind, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
