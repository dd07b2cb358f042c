// Package localdb opens the agent's embedded Badger database and runs the
// value-log garbage collection Badger does not schedule on its own.
package localdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog/log"
)

// Discard ratio recommended by the Badger docs for RunValueLogGC.
const gcDiscardRatio = 0.5

var gcInterval = 5 * time.Minute

// DB wraps badger.DB with a background GC loop.
type DB struct {
	*badger.DB
	closeCh chan struct{}
	mu      sync.Mutex
}

// Open opens (initializing if necessary) the database at path. Callers must
// Close it.
func Open(path string) (*DB, error) {
	bdb, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}
	db := &DB{DB: bdb}
	db.startGC()
	return db, nil
}

func (d *DB) startGC() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closeCh != nil {
		panic("localdb: gc already running")
	}
	d.closeCh = make(chan struct{})
	go func() {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-d.closeCh:
				return
			case <-ticker.C:
				// ErrNoRewrite just means there was nothing to collect.
				if err := d.RunValueLogGC(gcDiscardRatio); err != nil && err != badger.ErrNoRewrite {
					log.Warn().Err(err).Msg("localdb: value log gc")
				}
			}
		}
	}()
}

// Close stops the GC loop and closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closeCh != nil {
		close(d.closeCh)
		d.closeCh = nil
	}
	d.mu.Unlock()
	return d.DB.Close()
}
