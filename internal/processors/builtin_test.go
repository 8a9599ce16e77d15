package processors

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
	"github.com/conneroisu/assemble/internal/tracing"
)

func TestSetLookup(t *testing.T) {
	set := NewSet(logging.NewNopLogger())

	procs, err := set.Lookup([]string{NameLog, NameInventory, NameLog})
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.IsType(t, &Log{}, procs[0])
	assert.Same(t, set.Inventory, procs[1])

	_, err = set.Lookup([]string{"audit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"inventory", "log"}, Names())
}

func TestLogProcessor(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LevelInfo,
		Format: "json",
		Output: &buf,
	})

	ctx := tracing.ContextWithRunID(context.Background(), "run-1")
	NewLog(logger).Process(ctx, module.Module{ID: "m@v1", Path: "/plugins/m.so"})

	out := buf.String()
	assert.Contains(t, out, "Module received")
	assert.Contains(t, out, "m@v1")
	assert.Contains(t, out, "/plugins/m.so")
	assert.Contains(t, out, "run-1")
}

func TestLogProcessorWithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewLog(nil).Process(context.Background(), module.Static("m@v1"))
	})
}
