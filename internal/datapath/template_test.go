package datapath

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	input := map[string]any{
		"userId": "u-1",
		"stats":  map[string]any{"records": 120.0},
	}
	tmpl := map[string]any{
		"workflowStatus": "COMPLETED",
		"user.$":         "$.userId",
		"summary": map[string]any{
			"records.$": "$.stats.records",
			"tags":      []any{"a", map[string]any{"who.$": "$.userId"}},
		},
	}

	out, err := Render(tmpl, input)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"workflowStatus": "COMPLETED",
		"user":           "u-1",
		"summary": map[string]any{
			"records": 120.0,
			"tags":    []any{"a", map[string]any{"who": "u-1"}},
		},
	}, out)
}

func TestRenderMissingReference(t *testing.T) {
	_, err := Render(map[string]any{"x.$": "$.missing"}, map[string]any{})
	assert.Error(t, err)
}

func TestRenderLiteralScalar(t *testing.T) {
	out, err := Render("PROCESSING_FAILED", nil)
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING_FAILED", out)
}

func TestTemplateRefs(t *testing.T) {
	refs := TemplateRefs(map[string]any{
		"a.$": "$.x",
		"b":   []any{map[string]any{"c.$": "$.y"}},
	})
	assert.ElementsMatch(t, []string{"$.x", "$.y"}, refs)
}

func TestTemplateCollisions(t *testing.T) {
	assert.Empty(t, TemplateCollisions(map[string]any{"a": 1.0, "b.$": "$.b"}))
	assert.Equal(t, []string{"a", "c"}, TemplateCollisions(map[string]any{
		"c":   "literal",
		"c.$": "$.c",
		"list": []any{map[string]any{"a": true, "a.$": "$.a"}},
	}))
}

func TestNormalize(t *testing.T) {
	type payload struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	out, err := Normalize(payload{Status: "SUCCESS", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "SUCCESS", "count": 3.0}, out)
}

func TestNormalizeRejectsInexactIntegers(t *testing.T) {
	out, err := Normalize(map[string]any{"id": int64(1) << 53, "big": 1e21, "huge": float64(1 << 62)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 9007199254740992.0, "big": 1e21, "huge": float64(1 << 62)}, out)

	_, err = Normalize(map[string]any{"id": int64(1)<<53 + 1})
	assert.ErrorContains(t, err, "9007199254740993")
	_, err = Normalize([]any{json.Number("12345678901234567891")})
	assert.Error(t, err)

	out, err = Normalize(map[string]any{"n": json.Number("2.5"), "list": []any{json.Number("7")}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 2.5, "list": []any{7.0}}, out)
}
