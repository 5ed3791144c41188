package app

import (
	"encoding/json"
	"strconv"
	"testing"
)

var testKey = []int64{15552, 2, 108, 16}

func TestScoreEmptyAnswers(t *testing.T) {
	if got := Score(testKey, map[string]any{}); got != 0 {
		t.Fatalf("expected 0 for empty answers, got %d", got)
	}
	if got := Score(testKey, nil); got != 0 {
		t.Fatalf("expected 0 for nil answers, got %d", got)
	}
}

func TestScoreExactKeyCopy(t *testing.T) {
	answers := make(map[string]any, len(testKey))
	for i, v := range testKey {
		answers[strconv.Itoa(i+1)] = v
	}
	if got := Score(testKey, answers); got != len(testKey) {
		t.Fatalf("expected full score %d, got %d", len(testKey), got)
	}
}

func TestScoreStringEqualsInteger(t *testing.T) {
	asInt := Score(testKey, map[string]any{"1": int64(15552)})
	asString := Score(testKey, map[string]any{"1": "15552"})
	asFloat := Score(testKey, map[string]any{"1": float64(15552)})
	asNumber := Score(testKey, map[string]any{"1": json.Number("15552")})
	if asInt != 1 || asString != 1 || asFloat != 1 || asNumber != 1 {
		t.Fatalf("expected all numeric forms to score 1, got int=%d string=%d float=%d number=%d",
			asInt, asString, asFloat, asNumber)
	}
}

func TestScoreNonNumericIsIncorrect(t *testing.T) {
	answers := map[string]any{
		"1": "not a number",
		"2": "",
		"3": " ",
		"4": []any{16},
	}
	if got := Score(testKey, answers); got != 0 {
		t.Fatalf("expected non-numeric answers to score 0, got %d", got)
	}
}

func TestScoreIgnoresUnknownQuestionIDs(t *testing.T) {
	answers := map[string]any{
		"2":  float64(2),
		"99": float64(15552),
		"0":  float64(15552),
	}
	if got := Score(testKey, answers); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestScoreBounds(t *testing.T) {
	answers := map[string]any{
		"1": float64(15552),
		"2": float64(-1),
		"3": "108",
		"4": "sixteen",
	}
	got := Score(testKey, answers)
	if got < 0 || got > len(testKey) {
		t.Fatalf("score %d out of [0,%d]", got, len(testKey))
	}
	if got != 2 {
		t.Fatalf("expected 2 correct, got %d", got)
	}
}
