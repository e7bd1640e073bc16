package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaiteki-lab/kotae/core"
)

// Default search parameters.
const (
	DefaultLimit          = 10
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3

	// candidateCapLimit bounds per-method over-fetch before fusion.
	candidateCapLimit = 30
)

// SearchOptions controls one search call. The zero value selects sensible
// defaults via Normalize.
type SearchOptions struct {
	// Category restricts the shard set; empty means all categories.
	Category string
	// Language overrides auto-detection when set to a supported language.
	Language core.Language
	// Limit caps the number of returned results.
	Limit int
	// ExpandQuery enables synonym expansion of the query.
	ExpandQuery bool
	// SemanticWeight and KeywordWeight are fusion weights, normalized to
	// sum to 1 before use.
	SemanticWeight float64
	KeywordWeight  float64
	// UseCache enables the search-result cache for this call.
	UseCache bool
}

// DefaultSearchOptions returns the options used when the caller passes none.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:          DefaultLimit,
		ExpandQuery:    true,
		SemanticWeight: DefaultSemanticWeight,
		KeywordWeight:  DefaultKeywordWeight,
		UseCache:       true,
	}
}

// Normalize fills zero fields with defaults and normalizes fusion weights.
// Negative weights clamp to zero so the normalized pair always sums to 1
// with both components in [0,1].
func (o *SearchOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.SemanticWeight < 0 {
		o.SemanticWeight = 0
	}
	if o.KeywordWeight < 0 {
		o.KeywordWeight = 0
	}
	if o.SemanticWeight == 0 && o.KeywordWeight == 0 {
		o.SemanticWeight = DefaultSemanticWeight
		o.KeywordWeight = DefaultKeywordWeight
	}
	total := o.SemanticWeight + o.KeywordWeight
	o.SemanticWeight /= total
	o.KeywordWeight /= total
}

// candidateCap returns the per-method over-fetch bound: min(limit*2, 30).
func (o *SearchOptions) candidateCap() int {
	n := o.Limit * 2
	if n > candidateCapLimit {
		n = candidateCapLimit
	}
	return n
}

// fingerprint builds the deterministic option portion of the cache key.
func (o *SearchOptions) fingerprint(extraTerms []string) string {
	terms := append([]string(nil), extraTerms...)
	sort.Strings(terms)
	return fmt.Sprintf("c=%s|l=%s|n=%d|sw=%.4f|kw=%.4f|x=%s",
		o.Category, o.Language, o.Limit, o.SemanticWeight, o.KeywordWeight,
		strings.Join(terms, ","))
}

// SearchTiming reports wall-clock timing of a search call.
type SearchTiming struct {
	TotalMS int64 `json:"total_ms"`
}

// SearchMeta carries per-call counters alongside the ranked results.
type SearchMeta struct {
	TotalCount    int          `json:"total_count"`
	SemanticCount int          `json:"semantic_count"`
	KeywordCount  int          `json:"keyword_count"`
	Timing        SearchTiming `json:"timing"`
	CacheHit      bool         `json:"cache_hit"`
}

// SearchResponse is the full result of one search call.
type SearchResponse struct {
	Success        bool                 `json:"success"`
	Query          string               `json:"query"`
	ProcessedQuery string               `json:"processed_query"`
	Language       core.Language        `json:"language"`
	ExpandedTerms  []string             `json:"expanded_terms"`
	Results        []*core.SearchResult `json:"results"`
	Meta           SearchMeta           `json:"meta"`
}
