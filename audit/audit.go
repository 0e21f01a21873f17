package audit

import (
	"sync"
	"time"

	"aegis/util/goroutine"

	"go.uber.org/zap"
)

// Outcome is the result of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailure Outcome = "failure"
)

// Entry is a single audit record. Actor is the authenticated principal
// performing the action, Target the entity acted upon.
type Entry struct {
	Actor     string
	Action    string
	Target    string
	Outcome   Outcome
	Detail    string
	Timestamp time.Time
}

// Recorder accepts audit entries. Record must never block the caller.
type Recorder interface {
	Record(entry Entry)
}

// Logger writes audit entries as structured log lines through a bounded
// queue. Entries are dropped with a warning when the queue is full so
// that audit pressure never stalls request handling.
type Logger struct {
	logger  *zap.SugaredLogger
	entryCh chan Entry
	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
	closed  bool
}

// NewLogger creates an audit logger with the given queue depth.
func NewLogger(logger *zap.SugaredLogger, queueSize int) *Logger {
	if logger == nil {
		panic("audit logger requires a zap logger")
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	al := &Logger{
		logger:  logger,
		entryCh: make(chan Entry, queueSize),
	}
	al.wg.Add(1)
	go al.drain()
	return al
}

// Record queues an entry. Never blocks; drops on overflow.
func (al *Logger) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	al.mu.Lock()
	if al.closed {
		al.mu.Unlock()
		return
	}
	select {
	case al.entryCh <- entry:
		al.mu.Unlock()
	default:
		al.dropped++
		n := al.dropped
		al.mu.Unlock()
		al.logger.Warnf("Audit queue full, dropped entry (total dropped: %d)", n)
	}
}

// Close stops the drain goroutine after flushing queued entries.
func (al *Logger) Close() {
	al.mu.Lock()
	if al.closed {
		al.mu.Unlock()
		return
	}
	al.closed = true
	close(al.entryCh)
	al.mu.Unlock()
	al.wg.Wait()
}

func (al *Logger) drain() {
	defer al.wg.Done()
	defer goroutine.Recover("audit-drain", al.logger)
	for entry := range al.entryCh {
		al.logger.Infow("AUDIT: "+entry.Action,
			"actor", entry.Actor,
			"target", entry.Target,
			"outcome", string(entry.Outcome),
			"detail", entry.Detail,
			"timestamp", entry.Timestamp.Format(time.RFC3339),
		)
	}
}

// Nop is a Recorder that discards everything. Useful in tests.
type Nop struct{}

func (Nop) Record(Entry) {}
