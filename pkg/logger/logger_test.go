package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithContext_AddsStreamFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	previous := Get()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(previous) })

	ctx := ContextWithJobID(ContextWithStream(context.Background(), "events"), "job-7")
	WithContext(ctx).Info("stream started")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "events", fields["stream"])
	assert.Equal(t, "job-7", fields["job_id"])
}

func TestGet_DefaultsWhenUninitialised(t *testing.T) {
	previous := Get()
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(previous) })

	assert.NotNil(t, Get())
	assert.NoError(t, Init(Config{Level: "debug", Encoding: "console", OutputPaths: []string{"stderr"}}))
	assert.True(t, Get().Core().Enabled(zap.DebugLevel))
}
