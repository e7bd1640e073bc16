package retrieval

import (
	"math"
	"strings"
)

// KeywordMatchScore scores content against the query keywords.
//
// For each keyword found in the content (case-insensitive substring match):
//
//	frequency_score = sqrt(occurrences) * 0.5
//	length_weight   = sqrt(len(keyword)) / 2
//	position_weight = 1.5 if first occurrence < 100, 1.2 if < 300, else 1.0
//	contribution    = (1 + frequency_score) * length_weight * position_weight
//
// The summed contributions are multiplied by a diversity bonus of
// (1 + sqrt(matched_count) * 0.2). Positions and lengths are measured in
// runes so Japanese content is weighted the same as English.
func KeywordMatchScore(content string, keywords []string) (float64, []string) {
	if content == "" || len(keywords) == 0 {
		return 0, nil
	}

	lowered := strings.ToLower(content)

	var sum float64
	var matched []string

	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}

		byteIdx := strings.Index(lowered, kw)
		if byteIdx < 0 {
			continue
		}

		count := strings.Count(lowered, kw)
		firstRuneIdx := len([]rune(lowered[:byteIdx]))

		frequencyScore := math.Sqrt(float64(count)) * 0.5
		lengthWeight := math.Sqrt(float64(len([]rune(kw)))) / 2

		positionWeight := 1.0
		switch {
		case firstRuneIdx < 100:
			positionWeight = 1.5
		case firstRuneIdx < 300:
			positionWeight = 1.2
		}

		sum += (1 + frequencyScore) * lengthWeight * positionWeight
		matched = append(matched, keyword)
	}

	if len(matched) == 0 {
		return 0, nil
	}

	score := sum * (1 + math.Sqrt(float64(len(matched)))*0.2)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		// Degenerate inputs fall back to a flat per-keyword score.
		return float64(len(matched)) * 0.5, matched
	}
	return score, matched
}

// snippetMaxLen is the length under which content is returned unmodified.
const snippetMaxLen = 200

// Snippet extracts a keyword-aware excerpt of content. Short content is
// returned as-is. Otherwise the window [idx-80, idx+len(keyword)+120] around
// the first occurrence of the first matching keyword is returned, with
// ellipses marking truncation. Without a matching keyword the head of the
// content is used.
func Snippet(content string, keywords []string) string {
	runes := []rune(content)
	if len(runes) <= snippetMaxLen {
		return content
	}

	lowered := strings.ToLower(content)
	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		byteIdx := strings.Index(lowered, kw)
		if byteIdx < 0 {
			continue
		}

		idx := len([]rune(lowered[:byteIdx]))
		kwLen := len([]rune(kw))

		start := idx - 80
		if start < 0 {
			start = 0
		}
		end := idx + kwLen + 120
		if end > len(runes) {
			end = len(runes)
		}

		snippet := string(runes[start:end])
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(runes) {
			snippet = snippet + "..."
		}
		return snippet
	}

	return string(runes[:snippetMaxLen]) + "..."
}
