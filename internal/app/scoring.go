package app

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Score counts the positions where the submitted answer equals the key's
// value exactly. Question id (i+1) as a string maps to key[i]. Submitted
// values may be integers, floats, json.Number, or numeric strings; anything
// non-numeric (or an empty string) scores as incorrect rather than erroring.
// The answer key never leaves this package's enclosing trust boundary.
func Score(key []int64, answers map[string]any) int {
	total := 0
	for i, correct := range key {
		qid := strconv.Itoa(i + 1)
		given, ok := answers[qid]
		if !ok {
			continue
		}
		if value, numeric := coerceNumber(given); numeric && value == float64(correct) {
			total++
		}
	}
	return total
}

// coerceNumber normalizes the JSON-decoded answer forms to a float64.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
