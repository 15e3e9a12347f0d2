package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
}

func TestExtractJSONDirect(t *testing.T) {
	var p payload
	err := ExtractJSON(`{"label":"a","confidence":"likely"}`, &p)
	require.NoError(t, err)
	require.Equal(t, "a", p.Label)
}

func TestExtractJSONTypographicQuotes(t *testing.T) {
	var p payload
	err := ExtractJSON("{“label”: “a”, “confidence”: “likely”}", &p)
	require.NoError(t, err)
	require.Equal(t, "likely", p.Confidence)
}

func TestExtractJSONFencedBlock(t *testing.T) {
	raw := "Here is the summary:\n```json\n{\"label\": \"fenced\", \"confidence\": \"confirmed\"}\n```\nDone."
	var p payload
	err := ExtractJSON(raw, &p)
	require.NoError(t, err)
	require.Equal(t, "fenced", p.Label)
}

func TestExtractJSONBraceSpan(t *testing.T) {
	raw := `The analysis follows. {"label": "span {inner} text", "confidence": "developing"} Trailing prose.`
	var p payload
	err := ExtractJSON(raw, &p)
	require.NoError(t, err)
	require.Equal(t, "span {inner} text", p.Label)
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	raw := `prefix {"label": "has a } brace", "confidence": "likely"} suffix`
	var p payload
	err := ExtractJSON(raw, &p)
	require.NoError(t, err)
	require.Equal(t, "has a } brace", p.Label)
}

func TestExtractJSONFencedBlockWithTypographicQuotes(t *testing.T) {
	raw := "```json\n{“label”: “x”, “confidence”: “likely”}\n```"
	var p payload
	err := ExtractJSON(raw, &p)
	require.NoError(t, err)
	require.Equal(t, "x", p.Label)
}

func TestExtractJSONBraceSpanWithTypographicQuotes(t *testing.T) {
	raw := "The analysis follows. {“label”: “y”, “confidence”: “developing”} Trailing prose."
	var p payload
	err := ExtractJSON(raw, &p)
	require.NoError(t, err)
	require.Equal(t, "y", p.Label)
}

func TestExtractJSONFencedBlockWithProse(t *testing.T) {
	raw := "```\nSure, here it is:\n{\"label\": \"inner\", \"confidence\": \"confirmed\"}\nHope that helps.\n```"
	var p payload
	err := ExtractJSON(raw, &p)
	require.NoError(t, err)
	require.Equal(t, "inner", p.Label)
}

func TestExtractJSONUnparseable(t *testing.T) {
	var p payload
	err := ExtractJSON("I could not produce a summary for this cluster.", &p)
	require.ErrorIs(t, err, ErrUnparseable)
}
