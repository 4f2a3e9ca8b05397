package completion

import "unicode/utf8"

const maxPromptText = 8000

func buildExtractionPrompt(text string) string {
	return `Extract from this invoice text and return only valid JSON with these keys:
vendor (string), invoice_number (string), date (YYYY-MM-DD), amount (number), vat (number).
If a value is missing use null. No markdown or explanation.

` + truncateText(text, maxPromptText)
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) && len(s) > 0 {
		s = s[:len(s)-1]
	}
	return s
}
