package fieldparser

import "regexp"

// rule is one candidate in a field cascade: a pattern whose first capture group is
// handed to extract. extract may reject the capture, in which case the next rule runs.
type rule[T any] struct {
	name    string
	pattern *regexp.Regexp
	extract func(capture string) (T, bool)
}

// cascade is evaluated in order and stops at the first rule that yields a value.
type cascade[T any] []rule[T]

func (c cascade[T]) resolve(text string) (T, string, bool) {
	for _, r := range c {
		match := r.pattern.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		if value, ok := r.extract(match[1]); ok {
			return value, r.name, true
		}
	}
	var zero T
	return zero, "", false
}
