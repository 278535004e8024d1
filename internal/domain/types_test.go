package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]MatchStrategy{
		"exact":     StrategyExact,
		"regexp":    StrategyExact,
		" EXACT ":   StrategyExact,
		"fuzzy":     StrategyFuzzy,
		"ordinary":  StrategyFuzzy,
		"Ordinary ": StrategyFuzzy,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("magic")
	assert.ErrorContains(t, err, "unknown match strategy")
}

func TestParseScope(t *testing.T) {
	cases := map[string]Scope{
		"message": ScopeWholeMessage,
		"whole":   ScopeWholeMessage,
		"Token":   ScopePerToken,
	}
	for in, want := range cases {
		got, err := ParseScope(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseScope("line")
	assert.ErrorContains(t, err, "unknown scope")
}

func TestParseMediaType(t *testing.T) {
	got, err := ParseMediaType(" Voice")
	require.NoError(t, err)
	assert.Equal(t, MediaVoice, got)

	_, err = ParseMediaType("gif")
	assert.Error(t, err)
}

func TestTagJSON(t *testing.T) {
	tag := Tag{ID: 7, Text: "^кот", Strategy: StrategyExact, Scope: ScopeWholeMessage}

	raw, err := json.Marshal(tag)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"text":"^кот","strategy":"exact","scope":"message"}`, string(raw))

	var back Tag
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, tag, back)

	var aliased Tag
	require.NoError(t, json.Unmarshal([]byte(`{"text":"x","strategy":"regexp","scope":"whole"}`), &aliased))
	assert.Equal(t, StrategyExact, aliased.Strategy)
	assert.Equal(t, ScopeWholeMessage, aliased.Scope)

	assert.Error(t, json.Unmarshal([]byte(`{"strategy":"magic"}`), &aliased))
}

func TestStringUnknownValues(t *testing.T) {
	assert.Equal(t, "strategy(9)", MatchStrategy(9).String())
	assert.Equal(t, "scope(9)", Scope(9).String())
}
