// Copyright 2025 Kaiteki Lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package synth

import (
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"

	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/lang"
)

const (
	contextResultCap   = 5
	topFrequentWords   = 5
	frequentWordMinLen = 3
	conceptRadius      = 50
	conceptWeight      = 0.7
	snippetCap         = 3
	relatedQueryCap    = 3
	minProcedureItems  = 2
)

// responseContext is the evidence tree handed to template rendering. The
// data map uses only map[string]any / []any / scalar values so template
// path resolution can walk it directly.
type responseContext struct {
	data       map[string]any
	categories []string // first-appearance order; index 0 is primary
	totalSteps int
}

// buildResponseContext condenses the top results into the template context:
// deduplicated topics, weighted key concepts, categorized document lists,
// extracted procedures and action items, top snippets, and related-query
// suggestions.
func buildResponseContext(results []*core.SearchResult, query string, language core.Language, expander *lang.Expander) *responseContext {
	if len(results) > contextResultCap {
		results = results[:contextResultCap]
	}

	rc := &responseContext{data: make(map[string]any)}

	rc.data["topics"] = collectTopics(results, language)
	rc.data["key_concepts"] = collectKeyConcepts(results)

	categorized, order := categorizeDocuments(results)
	rc.categories = order
	rc.data["categories"] = categorized
	rc.data["category_list"] = toAnySlice(order)

	procedures, totalSteps := extractProcedures(results)
	rc.totalSteps = totalSteps
	rc.data["procedures"] = procedures

	rc.data["action_items"] = extractActionItems(results, language)
	rc.data["snippets"] = collectSnippets(results)
	rc.data["related_queries"] = toAnySlice(relatedQueries(query, language, expander))

	return rc
}

// collectTopics merges result categories, metadata topics, and the most
// frequent long content words into one deduplicated list.
func collectTopics(results []*core.SearchResult, language core.Language) []any {
	seen := make(map[string]bool)
	var topics []string

	add := func(topic string) {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return
		}
		key := strings.ToLower(topic)
		if !seen[key] {
			seen[key] = true
			topics = append(topics, topic)
		}
	}

	counts := make(map[string]int)
	var order []string
	for _, r := range results {
		add(r.Category)
		for _, t := range metadataStrings(r.Metadata, "topics") {
			add(t)
		}
		for _, word := range lang.Tokenize(r.Content, language) {
			if len([]rune(word)) <= frequentWordMinLen {
				continue
			}
			word = strings.ToLower(word)
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	// Stable top-N: by count descending, first appearance breaking ties.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	for i, word := range order {
		if i >= topFrequentWords {
			break
		}
		add(word)
	}

	return toAnySlice(topics)
}

// collectKeyConcepts gathers metadata concepts and promotes matched keywords
// to concepts with a short description window around their first occurrence.
func collectKeyConcepts(results []*core.SearchResult) []any {
	seen := make(map[string]bool)
	var concepts []any

	add := func(name, description string, weight float64) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		concepts = append(concepts, map[string]any{
			"name":        name,
			"description": description,
			"weight":      weight,
		})
	}

	for _, r := range results {
		for _, c := range metadataStrings(r.Metadata, "concepts") {
			add(c, "", 1.0)
		}
		for _, kw := range r.MatchedKeywords {
			add(kw, conceptWindow(r.Content, kw), conceptWeight)
		}
	}
	return concepts
}

// conceptWindow returns a radius of content around the keyword's first
// occurrence, rune-safe.
func conceptWindow(content, keyword string) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(keyword))
	if idx < 0 {
		return ""
	}
	runes := []rune(content)
	pos := len([]rune(content[:idx]))

	start := max(pos-conceptRadius, 0)
	end := min(pos+len([]rune(keyword))+conceptRadius, len(runes))
	return strings.TrimSpace(string(runes[start:end]))
}

// categorizeDocuments groups unique document IDs by category, preserving
// the order categories first appear in the ranked results.
func categorizeDocuments(results []*core.SearchResult) (map[string]any, []string) {
	categorized := make(map[string]any)
	byCategory := make(map[string][]any)
	seenDoc := make(map[string]bool)
	var order []string

	for _, r := range results {
		if r.Category == "" || r.DocumentID == "" {
			continue
		}
		docKey := r.Category + "/" + r.DocumentID
		if seenDoc[docKey] {
			continue
		}
		seenDoc[docKey] = true
		if _, ok := byCategory[r.Category]; !ok {
			order = append(order, r.Category)
		}
		byCategory[r.Category] = append(byCategory[r.Category], r.DocumentID)
	}

	for cat, ids := range byCategory {
		categorized[cat] = ids
	}
	return categorized, order
}

var procedureItemPattern = regexp.MustCompile(`^\s*(?:\d+[.)．）]|[①②③④⑤⑥⑦⑧⑨⑩]|[-*・])\s*\S`)

// extractProcedures finds numbered or bulleted list blocks with at least two
// items. The nearest preceding non-list line titles the block; the result
// title is the fallback.
func extractProcedures(results []*core.SearchResult) ([]any, int) {
	var procedures []any
	totalSteps := 0

	for _, r := range results {
		lines := strings.Split(r.Content, "\n")
		var block []string
		lastText := ""

		flush := func() {
			if len(block) >= minProcedureItems {
				title := lastText
				if title == "" {
					title = r.Title
				}
				procedures = append(procedures, map[string]any{
					"title": title,
					"steps": toAnySlice(block),
				})
				totalSteps += len(block)
			}
			block = nil
		}

		for _, line := range lines {
			if procedureItemPattern.MatchString(line) {
				block = append(block, strings.TrimSpace(stripListMarker(line)))
				continue
			}
			flush()
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lastText = trimmed
			}
		}
		flush()
	}
	return procedures, totalSteps
}

var listMarkerPattern = regexp.MustCompile(`^\s*(?:\d+[.)．）]|[①②③④⑤⑥⑦⑧⑨⑩]|[-*・])\s*`)

func stripListMarker(line string) string {
	return listMarkerPattern.ReplaceAllString(line, "")
}

var (
	actionCuesJA = regexp.MustCompile(`してください|しましょう|する必要があります|必要です|してみてください|ご確認ください|お試しください|推奨します`)
	actionCuesEN = regexp.MustCompile(`\b(you should|you must|please|need to|needs to|make sure|be sure to|remember to|it is recommended)\b`)

	sentenceSplitPattern = regexp.MustCompile(`[。．!！?？\n]+`)
)

// extractActionItems pulls sentences that read like instructions, detected
// by per-language cue phrases.
func extractActionItems(results []*core.SearchResult, language core.Language) []any {
	cues := actionCuesEN
	if language == core.LanguageJapanese {
		cues = actionCuesJA
	}

	seen := make(map[string]bool)
	var items []string
	for _, r := range results {
		for _, sentence := range sentenceSplitPattern.Split(r.Content, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" || seen[sentence] {
				continue
			}
			probe := sentence
			if language != core.LanguageJapanese {
				probe = strings.ToLower(sentence)
			}
			if cues.MatchString(probe) {
				seen[sentence] = true
				items = append(items, sentence)
			}
		}
	}
	return toAnySlice(items)
}

// collectSnippets keeps the top snippets with their source titles and scores.
func collectSnippets(results []*core.SearchResult) []any {
	var snippets []any
	for i, r := range results {
		if i >= snippetCap {
			break
		}
		text := r.Snippet
		if text == "" {
			text = r.Content
		}
		snippets = append(snippets, map[string]any{
			"title": r.Title,
			"text":  text,
			"score": r.Score,
		})
	}
	return snippets
}

// relatedQueries proposes reformulations: prefix/suffix variants plus
// synonym substitutions, shuffled and truncated.
func relatedQueries(query string, language core.Language, expander *lang.Expander) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var variants []string
	if language == core.LanguageJapanese {
		variants = append(variants,
			query+" 方法",
			query+" 手順",
			query+"とは",
		)
	} else {
		variants = append(variants,
			"how to "+query,
			query+" guide",
			query+" steps",
		)
	}

	if expander != nil {
		for _, keyword := range lang.Tokenize(query, language) {
			terms := expander.Expand(keyword, language)
			if len(terms) == 0 {
				continue
			}
			substituted := strings.Replace(query, keyword, terms[0], 1)
			if substituted != query {
				variants = append(variants, substituted)
			}
		}
	}

	seen := make(map[string]bool)
	deduped := variants[:0]
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			deduped = append(deduped, v)
		}
	}

	rand.Shuffle(len(deduped), func(i, j int) {
		deduped[i], deduped[j] = deduped[j], deduped[i]
	})
	if len(deduped) > relatedQueryCap {
		deduped = deduped[:relatedQueryCap]
	}
	return deduped
}

// metadataStrings extracts a string or string-list metadata field.
func metadataStrings(metadata map[string]any, key string) []string {
	if metadata == nil {
		return nil
	}
	switch v := metadata[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toAnySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
