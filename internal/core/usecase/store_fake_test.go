package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

// memStore is a transactional in-memory document store. WithinTx snapshots state
// and restores it when fn fails.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	approvals []domain.Approval

	createErr      error
	saveErr        error
	appendErr      error
	updateErr      error
	lookupErr      error
	lookupCalls    []string
	reportFilters  []domain.ReportFilter
	staleOnUpdate  bool
	reportOverride []domain.Document
}

func newMemStore(docs ...domain.Document) *memStore {
	s := &memStore{docs: make(map[string]domain.Document)}
	for _, doc := range docs {
		s.docs[doc.ID] = cloneDocument(doc)
	}
	return s
}

func (s *memStore) get(id string) domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDocument(s.docs[id])
}

func (s *memStore) Create(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.docs[doc.ID] = cloneDocument(*doc)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	out := cloneDocument(doc)
	return &out, nil
}

func (s *memStore) List(_ context.Context, page domain.Page) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if page.Skip >= len(out) {
		return []domain.Document{}, nil
	}
	out = out[page.Skip:]
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (s *memStore) ListApprovals(_ context.Context, documentID string) ([]domain.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Approval, 0)
	for _, a := range s.approvals {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) Report(_ context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportFilters = append(s.reportFilters, filter)
	source := s.reportOverride
	if source == nil {
		for _, doc := range s.docs {
			source = append(source, doc)
		}
		sort.Slice(source, func(i, j int) bool { return source[i].CreatedAt.Before(source[j].CreatedAt) })
	}
	out := make([]domain.Document, 0, len(source))
	for _, doc := range source {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.Vendor != "" && (doc.Vendor == nil || !strings.Contains(strings.ToLower(*doc.Vendor), strings.ToLower(filter.Vendor))) {
			continue
		}
		out = append(out, cloneDocument(doc))
	}
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.DocumentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]domain.Document, len(s.docs))
	for id, doc := range s.docs {
		snapshot[id] = cloneDocument(doc)
	}
	approvals := len(s.approvals)

	if err := fn(ctx, &memTx{store: s}); err != nil {
		s.docs = snapshot
		s.approvals = s.approvals[:approvals]
		return err
	}
	return nil
}

type memTx struct {
	store *memStore
}

func (tx *memTx) GetForUpdate(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := tx.store.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document for update", fmt.Errorf("id=%s", id))
	}
	out := cloneDocument(doc)
	return &out, nil
}

func (tx *memTx) SaveExtraction(_ context.Context, doc *domain.Document) error {
	if tx.store.saveErr != nil {
		return tx.store.saveErr
	}
	stored := tx.store.docs[doc.ID]
	next := cloneDocument(*doc)
	next.Status = stored.Status
	next.CurrentStep = stored.CurrentStep
	next.IsDuplicate = stored.IsDuplicate || doc.IsDuplicate
	tx.store.docs[doc.ID] = next
	return nil
}

func (tx *memTx) UpdateWorkflow(_ context.Context, doc *domain.Document) error {
	if tx.store.updateErr != nil {
		return tx.store.updateErr
	}
	stored, ok := tx.store.docs[doc.ID]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update workflow", fmt.Errorf("id=%s", doc.ID))
	}
	if tx.store.staleOnUpdate || stored.Version != doc.Version {
		return domain.WrapError(domain.ErrConflict, "update workflow", fmt.Errorf("stale version %d", doc.Version))
	}
	stored.Status = doc.Status
	stored.CurrentStep = doc.CurrentStep
	stored.Version++
	tx.store.docs[doc.ID] = stored
	doc.Version = stored.Version
	return nil
}

func (tx *memTx) AppendApproval(_ context.Context, approval *domain.Approval) error {
	if tx.store.appendErr != nil {
		return tx.store.appendErr
	}
	tx.store.approvals = append(tx.store.approvals, *approval)
	return nil
}

func (tx *memTx) ExistsByInvoiceNumber(_ context.Context, invoiceNumber, excludeID string) (bool, error) {
	tx.store.lookupCalls = append(tx.store.lookupCalls, "invoice:"+invoiceNumber)
	if tx.store.lookupErr != nil {
		return false, tx.store.lookupErr
	}
	for id, doc := range tx.store.docs {
		if id != excludeID && doc.InvoiceNumber != nil && *doc.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) ExistsByVendorAmount(_ context.Context, vendor string, amount float64, excludeID string) (bool, error) {
	tx.store.lookupCalls = append(tx.store.lookupCalls, fmt.Sprintf("vendor_amount:%s:%.2f", vendor, amount))
	if tx.store.lookupErr != nil {
		return false, tx.store.lookupErr
	}
	for id, doc := range tx.store.docs {
		if id == excludeID || doc.Vendor == nil || doc.Amount == nil {
			continue
		}
		if *doc.Vendor == vendor && *doc.Amount == amount {
			return true, nil
		}
	}
	return false, nil
}

func cloneDocument(doc domain.Document) domain.Document {
	out := doc
	if doc.Vendor != nil {
		v := *doc.Vendor
		out.Vendor = &v
	}
	if doc.InvoiceNumber != nil {
		v := *doc.InvoiceNumber
		out.InvoiceNumber = &v
	}
	if doc.Date != nil {
		v := *doc.Date
		out.Date = &v
	}
	if doc.Amount != nil {
		v := *doc.Amount
		out.Amount = &v
	}
	if doc.VAT != nil {
		v := *doc.VAT
		out.VAT = &v
	}
	return out
}
