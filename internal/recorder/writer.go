package recorder

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rig/internal/monitoring"
	"github.com/banshee-data/rig/internal/pose"
)

const (
	defaultQueueSize = 4096
	maxBatch         = 512
)

// ErrRecordsLost is returned by Close when the database rejected records.
var ErrRecordsLost = errors.New("records lost to database errors")

type record struct {
	pose  *PoseSample
	flash *FlashEvent
}

// Writer queues records for one session and writes them from a single
// goroutine. Enqueueing never blocks: when the queue is full the record is
// dropped and counted.
type Writer struct {
	store     *Store
	sessionID string
	queue     chan record
	dropped   atomic.Int64
	failed    atomic.Int64
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewWriter starts a writer for sessionID. A queueSize of zero uses the
// default.
func NewWriter(store *Store, sessionID string, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &Writer{
		store:     store,
		sessionID: sessionID,
		queue:     make(chan record, queueSize),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// SessionID returns the session the writer appends to.
func (w *Writer) SessionID() string { return w.sessionID }

// RecordPose queues one pose.
func (w *Writer) RecordPose(at time.Time, p pose.Pose) {
	w.enqueue(record{pose: &PoseSample{At: at, Pose: p}})
}

// RecordFlash queues one output transition.
func (w *Writer) RecordFlash(e FlashEvent) {
	w.enqueue(record{flash: &e})
}

func (w *Writer) enqueue(r record) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.queue <- r:
	default:
		w.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failed returns how many records were lost to database errors.
func (w *Writer) Failed() int64 { return w.failed.Load() }

func (w *Writer) run() {
	defer close(w.done)
	var poses []PoseSample
	var events []FlashEvent

	flush := func() {
		if len(poses) == 0 && len(events) == 0 {
			return
		}
		if err := w.store.insertBatch(w.sessionID, poses, events); err != nil {
			w.failed.Add(int64(len(poses) + len(events)))
			monitoring.Logf("recorder: failed to write %d records: %v", len(poses)+len(events), err)
		}
		poses, events = poses[:0], events[:0]
	}
	add := func(r record) {
		if r.pose != nil {
			poses = append(poses, *r.pose)
		}
		if r.flash != nil {
			events = append(events, *r.flash)
		}
	}

	for r := range w.queue {
		add(r)
		// Drain whatever else is already queued into the same transaction.
	drain:
		for len(poses)+len(events) < maxBatch {
			select {
			case next, ok := <-w.queue:
				if !ok {
					break drain
				}
				add(next)
			default:
				break drain
			}
		}
		flush()
	}
	flush()
}

// Close stops accepting records, writes everything queued and waits for the
// writer goroutine. Records sent after Close are dropped. It returns
// ErrRecordsLost when any batch failed to write, leaving the session partial.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	if n := w.dropped.Load(); n > 0 {
		monitoring.Logf("recorder: dropped %d records for session %s", n, w.sessionID)
	}
	if n := w.failed.Load(); n > 0 {
		return fmt.Errorf("session %s is partial, %d %w", w.sessionID, n, ErrRecordsLost)
	}
	return nil
}
