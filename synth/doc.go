// Package synth turns ranked search results into a rendered response.
//
// The synthesizer builds a response context from the top results (topics, key
// concepts, procedures, action items, snippets, related queries), selects a
// template from the catalog by response type and per-type heuristics, renders
// it through the synth/template DSL, and optionally asks a generative model
// to polish or translate the draft. Every step past input validation degrades
// instead of failing: a broken template falls back to a minimal summary, a
// failed enhancement keeps the unenhanced draft.
package synth
