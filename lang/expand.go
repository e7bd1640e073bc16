package lang

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kaiteki-lab/kotae/core"
)

// minSubstringLen gates substring synonym matching per language, so that a
// single kana or a two-letter fragment can't trigger false expansions.
var minSubstringLen = map[core.Language]int{
	core.LanguageJapanese: 2,
	core.LanguageEnglish:  3,
}

// Expander adds synonym terms to a query from static per-language tables.
type Expander struct {
	tables map[core.Language]map[string][]string
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithSynonyms merges extra synonym entries for a language into the table.
func WithSynonyms(language core.Language, entries map[string][]string) ExpanderOption {
	return func(e *Expander) {
		table := e.tables[language]
		if table == nil {
			table = make(map[string][]string)
			e.tables[language] = table
		}
		for term, synonyms := range entries {
			table[term] = append(table[term], synonyms...)
		}
	}
}

// NewExpander creates an expander with the built-in synonym tables.
func NewExpander(opts ...ExpanderOption) *Expander {
	e := &Expander{tables: map[core.Language]map[string][]string{
		core.LanguageJapanese: {
			"予算":      {"コスト", "費用", "budget"},
			"変更":      {"修正", "更新", "編集"},
			"請求":      {"支払い", "料金", "billing"},
			"設定":      {"セットアップ", "構成"},
			"削除":      {"消去", "除去"},
			"作成":      {"新規", "追加"},
			"アカウント": {"ユーザー", "account"},
			"エラー":    {"障害", "不具合", "error"},
			"方法":      {"手順", "やり方"},
			"確認":      {"チェック", "検証"},
		},
		core.LanguageEnglish: {
			"budget":   {"cost", "spending", "allocation"},
			"change":   {"modify", "update", "edit"},
			"billing":  {"invoice", "payment", "charge"},
			"account":  {"user", "profile"},
			"delete":   {"remove", "erase"},
			"create":   {"add", "new"},
			"error":    {"failure", "problem", "issue"},
			"setting":  {"configuration", "preference"},
			"password": {"credential", "login"},
			"cancel":   {"stop", "terminate"},
		},
	}}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand looks up each query keyword in the language's synonym table and
// returns the de-duplicated expansion terms. Synonyms are added for exact
// matches and, above a per-language length gate, when a keyword contains a
// table key or vice versa. Order is not significant; the result is sorted
// only to keep it deterministic for callers that log or cache it.
func (e *Expander) Expand(query string, language core.Language) []string {
	table := e.tables[language]
	if table == nil {
		table = e.tables[core.LanguageEnglish]
	}

	keywords := Tokenize(Preprocess(query, language), language)
	minLen := minSubstringLen[language]
	if minLen == 0 {
		minLen = minSubstringLen[core.LanguageEnglish]
	}

	seen := make(map[string]bool)
	var expanded []string
	add := func(terms []string) {
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				expanded = append(expanded, t)
			}
		}
	}

	for _, keyword := range keywords {
		if synonyms, ok := table[keyword]; ok {
			add(synonyms)
			continue
		}

		if utf8.RuneCountInString(keyword) < minLen {
			continue
		}
		for key, synonyms := range table {
			if utf8.RuneCountInString(key) < minLen {
				continue
			}
			if containsEither(keyword, key) {
				add(synonyms)
			}
		}
	}

	sort.Strings(expanded)
	return expanded
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
