package fieldparser

import (
	"regexp"
	"strconv"
	"strings"
)

var dateRules = cascade[string]{
	{
		name:    "labeled_iso",
		pattern: regexp.MustCompile(`(?i)(?:Date|Invoice\s*Date|Due\s*Date)[:\s]*(\d{4}-\d{2}-\d{2})`),
		extract: nonEmpty,
	},
	{
		name:    "labeled_numeric",
		pattern: regexp.MustCompile(`(?i)(?:Date|Invoice\s*Date)[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		extract: nonEmpty,
	},
	{
		name:    "bare_iso",
		pattern: regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
		extract: nonEmpty,
	},
	{
		name:    "bare_slash",
		pattern: regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
		extract: nonEmpty,
	},
}

// The generic label needs a digit in the captured token so header text such as
// "Invoice Total" or "Invoice Date" never becomes an invoice number.
var invoiceNumberRules = cascade[string]{
	{
		name:    "invoice_label",
		pattern: regexp.MustCompile(`(?i)\b(?:invoice\s*(?:no\.?|number|#)?|inv)[:\s#-]*([A-Za-z0-9-]*\d[A-Za-z0-9-]*)`),
		extract: nonEmpty,
	},
	{
		name:    "invoice_number_label",
		pattern: regexp.MustCompile(`(?i)Invoice\s+Number[:\s]+([A-Za-z0-9-]+)`),
		extract: nonEmpty,
	},
	{
		name:    "inv_prefix",
		pattern: regexp.MustCompile(`(?i)INV[:\s]+([A-Za-z0-9-]+)`),
		extract: nonEmpty,
	},
}

var amountRules = cascade[float64]{
	{
		name:    "labeled_total",
		pattern: regexp.MustCompile(`(?i)(?:Total|Amount|Sum|Balance)[:\s]*\$?\s*([\d,]+\.?\d{0,2})`),
		extract: parseMoney,
	},
	{
		name:    "dollar_prefixed",
		pattern: regexp.MustCompile(`\$\s*([\d,]+\.?\d{2})`),
		extract: parseMoney,
	},
	{
		name:    "labeled_plain",
		pattern: regexp.MustCompile(`(?i)(?:Total|Amount)[:\s]*([\d,]+\.?\d{2})`),
		extract: parseMoney,
	},
	{
		name:    "currency_suffixed",
		pattern: regexp.MustCompile(`(?i)([\d,]+\.\d{2})\s*(?:USD|EUR|GBP|ZAR|R)`),
		extract: parseMoney,
	},
}

var vatRules = cascade[float64]{
	{
		name:    "labeled_tax",
		pattern: regexp.MustCompile(`(?i)(?:VAT|Tax|GST)[:\s]*\$?\s*([\d,]+\.?\d{0,2})`),
		extract: parseMoney,
	},
	{
		name:    "labeled_tax_plain",
		pattern: regexp.MustCompile(`(?i)(?:VAT|Tax|GST)[:\s]*([\d,]+\.?\d{2})`),
		extract: parseMoney,
	},
}

func nonEmpty(capture string) (string, bool) {
	v := strings.TrimSpace(capture)
	return v, v != ""
}

// parseMoney strips thousands separators; an unparseable capture falls through.
func parseMoney(capture string) (float64, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(capture), ",", "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
