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
	"regexp"
	"strings"
)

// Query classification backs the per-type template tie-break heuristics.
// All classifiers are cue-phrase based, bilingual, and deliberately cheap:
// they run on every generate_response call.

type urgency int

const (
	urgencyNormal urgency = iota
	urgencyHigh
)

func (u urgency) String() string {
	if u == urgencyHigh {
		return "high"
	}
	return "normal"
}

type complexity int

const (
	complexitySimple complexity = iota
	complexityModerate
	complexityComplex
)

func (c complexity) String() string {
	switch c {
	case complexityComplex:
		return "complex"
	case complexityModerate:
		return "moderate"
	default:
		return "simple"
	}
}

// prepKind classifies a prep-type query into its meeting-preparation flavor.
type prepKind int

const (
	prepGeneral prepKind = iota
	prepTroubleshooting
	prepExplanation
	prepPolicy
)

func (k prepKind) String() string {
	switch k {
	case prepTroubleshooting:
		return "troubleshooting"
	case prepExplanation:
		return "explanation"
	case prepPolicy:
		return "policy"
	default:
		return "general"
	}
}

type detailLevel int

const (
	detailStandard detailLevel = iota
	detailHigh
)

func (d detailLevel) String() string {
	if d == detailHigh {
		return "high"
	}
	return "standard"
}

var (
	urgencyPattern = regexp.MustCompile(`至急|緊急|今すぐ|急ぎ|早急|\b(urgent|urgently|asap|immediately|right away|emergency)\b`)

	troubleshootingPattern = regexp.MustCompile(`エラー|問題|不具合|障害|動かない|できない|失敗|\b(error|issue|problem|broken|fail|failed|failing|not working|troubleshoot)\b`)
	explanationPattern     = regexp.MustCompile(`とは|仕組み|意味|違い|\b(what is|what are|how does|explain|meaning|difference)\b`)
	policyPattern          = regexp.MustCompile(`ポリシー|規約|規定|ルール|方針|\b(policy|policies|terms|rule|rules|compliance|guideline)\b`)

	detailPattern = regexp.MustCompile(`詳細|詳しく|具体的|手順|すべて|\b(detail|detailed|in depth|step by step|thorough|comprehensive)\b`)
)

// classifyUrgency detects urgency cue phrases in the query.
func classifyUrgency(query string) urgency {
	if urgencyPattern.MatchString(strings.ToLower(query)) {
		return urgencyHigh
	}
	return urgencyNormal
}

// classifyComplexity grades a response by total procedure step count.
func classifyComplexity(totalSteps int) complexity {
	switch {
	case totalSteps > 10:
		return complexityComplex
	case totalSteps > 5:
		return complexityModerate
	default:
		return complexitySimple
	}
}

// classifyPrepKind picks the meeting-prep flavor for the query. Order
// matters: troubleshooting cues beat explanation cues beat policy cues.
func classifyPrepKind(query string) prepKind {
	lowered := strings.ToLower(query)
	switch {
	case troubleshootingPattern.MatchString(lowered):
		return prepTroubleshooting
	case explanationPattern.MatchString(lowered):
		return prepExplanation
	case policyPattern.MatchString(lowered):
		return prepPolicy
	default:
		return prepGeneral
	}
}

// classifyDetailLevel detects whether the query asks for exhaustive detail.
func classifyDetailLevel(query string) detailLevel {
	if detailPattern.MatchString(strings.ToLower(query)) {
		return detailHigh
	}
	return detailStandard
}
