package llm

import (
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
)

var (
	intFields = map[string][]string{
		"patient": {"age"},
		"order":   {"item_quantity"},
	}
	sectionKeys = map[string]struct{}{
		"patient": {}, "prescriber": {}, "devices": {}, "order": {},
	}
)

// NormalizeAndSanitize tidies a decoded model response in place before shape validation.
// - Trims strings and turns "", "null", "none", "n/a" into null
// - Coerces numeric strings ("45", "2.0") in integer fields to numbers
// - Removes unknown top-level keys
// Returns the list of touched keys for logging.
func NormalizeAndSanitize(m map[string]any, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	touched := make([]string, 0, 4)

	for k := range m {
		if _, ok := sectionKeys[k]; !ok {
			delete(m, k)
			touched = append(touched, k+"(unknown)")
		}
	}

	for section, v := range m {
		switch t := v.(type) {
		case map[string]any:
			touched = append(touched, sanitizeObject(section, t, intFields[section])...)
		case []any:
			for _, item := range t {
				if obj, ok := item.(map[string]any); ok {
					touched = append(touched, sanitizeObject(section, obj, []string{"quantity"})...)
				}
			}
		}
	}

	if len(touched) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "touched", touched)
	}
	return touched
}

func sanitizeObject(prefix string, obj map[string]any, ints []string) []string {
	var touched []string
	for k, v := range obj {
		// identifiers like MRN or SKU sometimes come back as bare numbers
		if f, isNum := v.(float64); isNum && !slices.Contains(ints, k) {
			obj[k] = strconv.FormatFloat(f, 'f', -1, 64)
			touched = append(touched, prefix+"."+k+"(string)")
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(s)
		if isNullWord(trimmed) {
			obj[k] = nil
			touched = append(touched, prefix+"."+k+"(null)")
			continue
		}
		if trimmed != s {
			obj[k] = trimmed
		}
	}
	for _, k := range ints {
		s, ok := obj[k].(string)
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			obj[k] = f
			touched = append(touched, prefix+"."+k+"(number)")
		}
	}
	return touched
}

func isNullWord(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a":
		return true
	}
	return false
}
