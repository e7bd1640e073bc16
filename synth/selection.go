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
	"github.com/kaiteki-lab/kotae/core"
)

// selectTemplate picks the best template from the catalog for a response
// type. The funnel narrows: type, language, category overlap, then a
// per-type tie-break on metadata. Each narrowing step keeps the wider pool
// when it would eliminate every candidate. An empty catalog yields the
// built-in skeleton.
func selectTemplate(catalog []*core.Template, rt core.ResponseType, language core.Language, query string, rc *responseContext) *core.Template {
	if len(catalog) == 0 {
		return builtinTemplate(rt, language)
	}

	candidates := filterByType(catalog, rt)
	if len(candidates) == 0 {
		candidates = filterByType(catalog, core.ResponseStandard)
	}
	if len(candidates) == 0 {
		return builtinTemplate(rt, language)
	}

	candidates = narrowByLanguage(candidates, language)
	candidates = narrowByCategory(candidates, rc.categories)

	switch rt {
	case core.ResponseEmail:
		return pickEmail(candidates, query, rc)
	case core.ResponsePrep:
		return pickPrep(candidates, query)
	case core.ResponseDetailed:
		return pickDetailed(candidates, query, rc)
	default:
		return candidates[0]
	}
}

func filterByType(catalog []*core.Template, rt core.ResponseType) []*core.Template {
	var out []*core.Template
	for _, tpl := range catalog {
		if tpl.Type == rt {
			out = append(out, tpl)
		}
	}
	return out
}

func narrowByLanguage(candidates []*core.Template, language core.Language) []*core.Template {
	var out []*core.Template
	for _, tpl := range candidates {
		if tpl.Language == language {
			out = append(out, tpl)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}

func narrowByCategory(candidates []*core.Template, categories []string) []*core.Template {
	if len(categories) == 0 {
		return candidates
	}
	catSet := make(map[string]bool, len(categories))
	for _, c := range categories {
		catSet[c] = true
	}

	var out []*core.Template
	for _, tpl := range candidates {
		if tpl.Category != "" && catSet[tpl.Category] {
			out = append(out, tpl)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}

// pickEmail prefers a template whose metadata matches both the query
// urgency and the procedure-derived complexity, then either, else the first.
func pickEmail(candidates []*core.Template, query string, rc *responseContext) *core.Template {
	wantUrgency := classifyUrgency(query).String()
	wantComplexity := classifyComplexity(rc.totalSteps).String()

	var partial *core.Template
	for _, tpl := range candidates {
		urgencyMatch := metadataString(tpl.Metadata, "urgency") == wantUrgency
		complexityMatch := metadataString(tpl.Metadata, "complexity") == wantComplexity
		if urgencyMatch && complexityMatch {
			return tpl
		}
		if partial == nil && (urgencyMatch || complexityMatch) {
			partial = tpl
		}
	}
	if partial != nil {
		return partial
	}
	return candidates[0]
}

// pickPrep prefers a template whose metadata kind matches the query's
// meeting-prep flavor.
func pickPrep(candidates []*core.Template, query string) *core.Template {
	want := classifyPrepKind(query).String()
	for _, tpl := range candidates {
		if metadataString(tpl.Metadata, "kind") == want {
			return tpl
		}
	}
	return candidates[0]
}

// pickDetailed prefers the template matching the primary result category,
// else one whose detail_level matches the query cue.
func pickDetailed(candidates []*core.Template, query string, rc *responseContext) *core.Template {
	if len(rc.categories) > 0 {
		primary := rc.categories[0]
		for _, tpl := range candidates {
			if tpl.Category == primary {
				return tpl
			}
		}
	}

	want := classifyDetailLevel(query).String()
	for _, tpl := range candidates {
		if metadataString(tpl.Metadata, "detail_level") == want {
			return tpl
		}
	}
	return candidates[0]
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	s, _ := metadata[key].(string)
	return s
}
