package goroutine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_LogsPanic(t *testing.T) {
	zapCore, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(zapCore).Sugar()

	func() {
		defer Recover("test-worker", logger)
		panic("boom")
	}()

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "test-worker", fields["goroutine"])
	assert.Equal(t, "boom", fields["panic"])
	assert.NotEmpty(t, fields["stack"])
}

func TestRecover_NoPanicNoLog(t *testing.T) {
	zapCore, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(zapCore).Sugar()

	func() {
		defer Recover("quiet-worker", logger)
	}()

	assert.Empty(t, logs.All())
}

func TestRecover_NilLoggerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("no-logger", nil)
		panic("boom")
	})
}

func TestGo_ContainsPanic(t *testing.T) {
	zapCore, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(zapCore).Sugar()

	Go("worker", logger, func() {
		panic("contained")
	})

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "contained", logs.All()[0].ContextMap()["panic"])
}
