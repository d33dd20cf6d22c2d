package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMargin(t *testing.T) {
	out, err := Margin(context.Background(), map[string]any{"price": 1000.0, "cost": 800.0})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, out["margin"], 1e-9)
	assert.InDelta(t, 0.2, out["marginRate"], 1e-9)

	_, err = Margin(context.Background(), map[string]any{"price": 0, "cost": 1})
	assert.Error(t, err)

	_, err = Margin(context.Background(), map[string]any{"price": "x", "cost": 1})
	assert.Error(t, err)
}

func TestJQ(t *testing.T) {
	out, err := JQ(context.Background(), map[string]any{
		"query": ".items | length",
		"input": map[string]any{"items": []any{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out["result"])

	_, err = JQ(context.Background(), map[string]any{"query": ".items |"})
	assert.Error(t, err)

	_, err = JQ(context.Background(), map[string]any{"query": 42})
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	out, err := Format(context.Background(), map[string]any{
		"template": "margin rate is %v",
		"args":     []any{0.2},
	})
	require.NoError(t, err)
	assert.Equal(t, "margin rate is 0.2", out["text"])

	_, err = Format(context.Background(), map[string]any{"template": 1})
	assert.Error(t, err)
}

func TestAllRegistersEveryBuiltin(t *testing.T) {
	all := All()
	for _, id := range []string{"math.margin", "transform.jq", "string.format"} {
		assert.Contains(t, all, id)
	}
}
