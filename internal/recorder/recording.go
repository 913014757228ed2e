package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rig/internal/monitoring"
)

// Recording is an open store with a writer for one new session. Closing it
// flushes the writer and closes the store.
type Recording struct {
	*Writer
	store *Store
}

// StartRecording opens the database at path, registers a session of kind
// with config stored as JSON, and starts its writer.
func StartRecording(path, kind string, config any, at time.Time) (*Recording, error) {
	cfg, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session config: %w", err)
	}
	store, err := Open(path)
	if err != nil {
		return nil, err
	}
	sess, err := store.StartSession(kind, string(cfg), at)
	if err != nil {
		store.Close()
		return nil, err
	}
	monitoring.Logf("recording %s session %s to %s", kind, sess.ID, path)
	return &Recording{Writer: NewWriter(store, sess.ID, 0), store: store}, nil
}

// Store returns the underlying store.
func (r *Recording) Store() *Store { return r.store }

// Close flushes queued records and closes the database.
func (r *Recording) Close() error {
	return errors.Join(r.Writer.Close(), r.store.Close())
}
