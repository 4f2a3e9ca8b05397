package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type DuplicateRule string

const (
	DuplicateRuleNone          DuplicateRule = "none"
	DuplicateRuleInvoiceNumber DuplicateRule = "invoice_number"
	DuplicateRuleVendorAmount  DuplicateRule = "vendor_amount"
)

// DuplicateClassifier decides is_duplicate once, at processing time.
type DuplicateClassifier struct{}

// Classify applies the first rule for which the document has enough signal:
// invoice number, then vendor plus non-zero amount, otherwise not a duplicate.
func (DuplicateClassifier) Classify(ctx context.Context, lookup ports.DuplicateLookup, doc *domain.Document) (bool, DuplicateRule, error) {
	if doc.InvoiceNumber != nil && strings.TrimSpace(*doc.InvoiceNumber) != "" {
		found, err := lookup.ExistsByInvoiceNumber(ctx, *doc.InvoiceNumber, doc.ID)
		if err != nil {
			return false, DuplicateRuleInvoiceNumber, fmt.Errorf("lookup by invoice number: %w", err)
		}
		return found, DuplicateRuleInvoiceNumber, nil
	}

	if doc.Vendor != nil && *doc.Vendor != "" && doc.Amount != nil && *doc.Amount != 0 {
		found, err := lookup.ExistsByVendorAmount(ctx, *doc.Vendor, *doc.Amount, doc.ID)
		if err != nil {
			return false, DuplicateRuleVendorAmount, fmt.Errorf("lookup by vendor and amount: %w", err)
		}
		return found, DuplicateRuleVendorAmount, nil
	}

	return false, DuplicateRuleNone, nil
}
