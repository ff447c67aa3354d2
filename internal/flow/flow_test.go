package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lcod/internal/registry"
	"lcod/internal/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestContext(t *testing.T) *registry.Context {
	t.Helper()
	reg := registry.New()
	Register(reg)
	return registry.NewContext(reg)
}

func TestFlowIfRunsThenWhenTruthy(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		if name == "then" {
			return map[string]any{"branch": "then"}, nil
		}
		return map[string]any{"branch": "else"}, nil
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/if@1", map[string]any{"cond": true}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"branch": "then"}, out)
}

func TestFlowIfRunsElseWhenFalsy(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		if name == "then" {
			return map[string]any{"branch": "then"}, nil
		}
		return map[string]any{"branch": "else"}, nil
	}))
	defer ctx.PopSlotExecutor()

	for _, falsy := range []any{nil, false} {
		out, err := ctx.Call("lcod://flow/if@1", map[string]any{"cond": falsy}, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"branch": "else"}, out)
	}
}

func TestFlowIfZeroAndEmptyStringAreTruthy(t *testing.T) {
	ctx := newTestContext(t)
	var ran string
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		ran = name
		return map[string]any{}, nil
	}))
	defer ctx.PopSlotExecutor()

	for _, truthy := range []any{0, "", []any{}, map[string]any{}} {
		ran = ""
		_, err := ctx.Call("lcod://flow/if@1", map[string]any{"cond": truthy}, nil)
		require.NoError(t, err)
		assert.Equal(t, "then", ran)
	}
}

func TestFlowIfMissingElseReturnsEmptyMap(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/if@1", map[string]any{"cond": false}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)
}

func TestFlowForeachRunsBodyPerItem(t *testing.T) {
	ctx := newTestContext(t)
	var seenIndexes []int
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		vars := slotVars.(map[string]any)
		seenIndexes = append(seenIndexes, vars["index"].(int))
		return map[string]any{"val": vars["item"]}, nil
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/foreach@1", map[string]any{"list": []any{"a", "b", "c"}}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, []any{"a", "b", "c"}, result["results"])
	assert.Equal(t, []int{0, 1, 2}, seenIndexes)
}

// An empty list runs the else slot with {item: nil, index: -1}.
func TestFlowForeachEmptyListRunsElse(t *testing.T) {
	ctx := newTestContext(t)
	var ranElse bool
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		require.Equal(t, "else", name)
		vars := slotVars.(map[string]any)
		assert.Nil(t, vars["item"])
		assert.Equal(t, -1, vars["index"])
		ranElse = true
		return map[string]any{}, nil
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/foreach@1", map[string]any{"list": []any{}}, nil)
	require.NoError(t, err)
	assert.True(t, ranElse)
	assert.Equal(t, map[string]any{"results": []any(nil)}, out)
}

func TestFlowForeachEmptyListWithoutElseIsNotAnError(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/foreach@1", map[string]any{"list": []any{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"results": []any(nil)}, out)
}

// Loop with continue/break: list [1,2,3,8,9], skip
// even numbers via continue, stop at the first value >7 via break,
// collectPath "$.val" -> {results:[1,3]}.
func TestFlowForeachContinueAndBreak(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		vars := slotVars.(map[string]any)
		item := vars["item"].(int)
		if item > 7 {
			return nil, &registry.ErrFlowSignal{Kind: registry.SignalBreak}
		}
		if item%2 == 0 {
			return nil, &registry.ErrFlowSignal{Kind: registry.SignalContinue}
		}
		return map[string]any{"val": item}, nil
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/foreach@1", map[string]any{
		"list": []any{1, 2, 3, 8, 9},
	}, map[string]any{"collectPath": "$.val"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"results": []any{1, 3}}, out)
}

func TestFlowForeachPropagatesCancellation(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		return map[string]any{}, nil
	}))
	defer ctx.PopSlotExecutor()
	ctx.Cancel()

	_, err := ctx.Call("lcod://flow/foreach@1", map[string]any{"list": []any{1, 2}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrCancelled)
}

func TestFlowBreakAndContinueReturnTypedSignals(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.Call("lcod://flow/break@1", nil, nil)
	var signal *registry.ErrFlowSignal
	require.ErrorAs(t, err, &signal)
	assert.Equal(t, registry.SignalBreak, signal.Kind)

	_, err = ctx.Call("lcod://flow/continue@1", nil, nil)
	require.ErrorAs(t, err, &signal)
	assert.Equal(t, registry.SignalContinue, signal.Kind)
}

func TestFlowCheckAbortPassesThroughCancellation(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Call("lcod://flow/check_abort@1", nil, nil)
	require.NoError(t, err)

	ctx.Cancel()
	_, err = ctx.Call("lcod://flow/check_abort@1", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrCancelled)
}

func TestFlowWhileRunsUntilConditionFalse(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		n := localState.(map[string]any)["n"].(int)
		switch name {
		case "condition":
			return map[string]any{"continue": n < 3}, nil
		case "body":
			return map[string]any{"state": map[string]any{"n": n + 1}}, nil
		}
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{"n": 0},
		"maxIterations": 10,
	}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, map[string]any{"n": 3}, result["state"])
	assert.Equal(t, 3, result["iterations"])
}

// maxIterations=0 with an initially truthy condition fails
// without running the body; a falsy condition still succeeds via else.
func TestFlowWhileMaxIterationsZero(t *testing.T) {
	ctx := newTestContext(t)
	bodyRan := false
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		switch name {
		case "condition":
			return map[string]any{"continue": true}, nil
		case "body":
			bodyRan = true
			return map[string]any{}, nil
		}
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	_, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{},
		"maxIterations": 0,
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrBadRequest)
	assert.False(t, bodyRan)
}

func TestFlowWhileMaxIterationsZeroWithFalsyConditionSucceeds(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		if name == "condition" {
			return map[string]any{"continue": false}, nil
		}
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{"n": 1},
		"maxIterations": 0,
	}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, 0, result["iterations"])
}

// A condition that never
// goes false must fail once iterations reaches maxIterations.
func TestFlowWhileExceedsMaxIterations(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		switch name {
		case "condition":
			return map[string]any{"continue": true}, nil
		case "body":
			return map[string]any{"state": map[string]any{}}, nil
		}
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	_, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{},
		"maxIterations": 2,
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrBadRequest)
}

func TestFlowWhileBreakStopsLoop(t *testing.T) {
	ctx := newTestContext(t)
	calls := 0
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		switch name {
		case "condition":
			return map[string]any{"continue": true}, nil
		case "body":
			calls++
			if calls == 2 {
				return nil, &registry.ErrFlowSignal{Kind: registry.SignalBreak}
			}
			return map[string]any{"state": map[string]any{}}, nil
		}
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{},
		"maxIterations": 10,
	}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, 2, result["iterations"])
}

func TestFlowWhileContinueAdvancesIterationCountWithoutStateChange(t *testing.T) {
	ctx := newTestContext(t)
	calls := 0
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		switch name {
		case "condition":
			return map[string]any{"continue": calls < 3}, nil
		case "body":
			calls++
			return nil, &registry.ErrFlowSignal{Kind: registry.SignalContinue}
		}
		return nil, &registry.ErrSlotNotFound{Name: name}
	}))
	defer ctx.PopSlotExecutor()

	out, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{},
		"maxIterations": 10,
	}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, 3, result["iterations"])
	assert.Equal(t, 3, calls)
}

func TestFlowWhilePropagatesCancellation(t *testing.T) {
	ctx := newTestContext(t)
	ctx.PushSlotExecutor(registry.SlotExecutorFunc(func(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
		return map[string]any{"continue": true}, nil
	}))
	defer ctx.PopSlotExecutor()
	ctx.Cancel()

	_, err := ctx.Call("lcod://flow/while@1", map[string]any{
		"state":         map[string]any{},
		"maxIterations": 5,
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrCancelled)
}
