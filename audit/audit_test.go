package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RecordAndFlush(t *testing.T) {
	zapCore, logs := observer.New(zap.InfoLevel)
	al := NewLogger(zap.New(zapCore).Sugar(), 16)

	al.Record(Entry{
		Actor:   "alice",
		Action:  "role.assign",
		Target:  "user:7",
		Outcome: OutcomeSuccess,
		Detail:  "role 3",
	})
	al.Close()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "AUDIT: role.assign", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "alice", fields["actor"])
	assert.Equal(t, "user:7", fields["target"])
	assert.Equal(t, "success", fields["outcome"])
	assert.NotEmpty(t, fields["timestamp"])
}

func TestLogger_DefaultsTimestamp(t *testing.T) {
	zapCore, logs := observer.New(zap.InfoLevel)
	al := NewLogger(zap.New(zapCore).Sugar(), 1)

	before := time.Now()
	al.Record(Entry{Action: "permission.check", Outcome: OutcomeDenied})
	al.Close()

	entries := logs.All()
	require.Len(t, entries, 1)
	ts, err := time.Parse(time.RFC3339, entries[0].ContextMap()["timestamp"].(string))
	require.NoError(t, err)
	assert.False(t, ts.Before(before.Truncate(time.Second)))
}

func TestLogger_RecordAfterCloseIsNoop(t *testing.T) {
	zapCore, logs := observer.New(zap.InfoLevel)
	al := NewLogger(zap.New(zapCore).Sugar(), 4)
	al.Close()

	al.Record(Entry{Action: "late"})
	al.Close()

	assert.Empty(t, logs.All())
}

func TestNewLogger_RequiresZapLogger(t *testing.T) {
	assert.Panics(t, func() { NewLogger(nil, 4) })
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop{}.Record(Entry{Action: "x"}) })
}
