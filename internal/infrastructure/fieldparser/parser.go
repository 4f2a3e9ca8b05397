// Package fieldparser extracts invoice fields from OCR text with ordered regex cascades.
package fieldparser

import (
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// Trace records which rule produced each field; empty means no rule matched.
type Trace struct {
	Vendor        string
	InvoiceNumber string
	Date          string
	Amount        string
	VAT           string
	VATDerived    bool
}

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(text string) (domain.FieldSet, []string) {
	fields, trace := p.ParseWithTrace(text)
	return fields, trace.Rules()
}

// Rules lists matched rules as field=rule in a fixed field order.
func (t Trace) Rules() []string {
	var out []string
	add := func(field, rule string) {
		if rule != "" {
			out = append(out, field+"="+rule)
		}
	}
	add("date", t.Date)
	add("invoice_number", t.InvoiceNumber)
	add("amount", t.Amount)
	add("vat", t.VAT)
	if t.VATDerived {
		add("vat", "derived")
	}
	add("vendor", t.Vendor)
	return out
}

// ParseWithTrace resolves every field independently and applies the 15% VAT rule when
// no VAT line was found but a positive amount was.
func (p *Parser) ParseWithTrace(text string) (domain.FieldSet, Trace) {
	var (
		fields domain.FieldSet
		trace  Trace
	)
	if strings.TrimSpace(text) == "" {
		return fields, trace
	}

	if v, name, ok := dateRules.resolve(text); ok {
		fields.Date, trace.Date = &v, name
	}
	if v, name, ok := invoiceNumberRules.resolve(text); ok {
		fields.InvoiceNumber, trace.InvoiceNumber = &v, name
	}
	if v, name, ok := amountRules.resolve(text); ok {
		fields.Amount, trace.Amount = &v, name
	}
	if v, name, ok := vatRules.resolve(text); ok {
		fields.VAT, trace.VAT = &v, name
	}
	if v, name, ok := resolveVendor(text); ok {
		fields.Vendor, trace.Vendor = &v, name
	}

	if fields.VAT == nil && fields.Amount != nil {
		if vat, ok := domain.DeriveVAT(*fields.Amount); ok {
			fields.VAT = &vat
			trace.VATDerived = true
		}
	}
	return fields, trace
}
