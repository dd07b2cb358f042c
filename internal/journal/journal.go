// Package journal records every reconciliation outcome locally and, when a
// collector is configured, as OTel log records. Recording is best-effort:
// failures are logged and never affect the reconciliation path.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"device-protect/agent/internal/localdb"
)

const keyPrefix = "journal/"

// Entry is one reconciliation record.
type Entry struct {
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	Source          string    `json:"source"`
	Verb            string    `json:"verb"`
	LockState       string    `json:"lock_state"`
	ProtectionState string    `json:"protection_state"`
	Actions         []string  `json:"actions"`
}

// Journal persists entries to the local database and mirrors them to an OTel
// logger.
type Journal struct {
	db     *localdb.DB
	logger otellog.Logger
	log    zerolog.Logger
	nowF   func() time.Time
}

// New returns a Journal writing to db. provider may be nil-equivalent (a
// no-op LoggerProvider) when no collector is configured.
func New(db *localdb.DB, provider *sdklog.LoggerProvider, log zerolog.Logger) *Journal {
	return &Journal{
		db:     db,
		logger: provider.Logger("deviceprotect.journal"),
		log:    log.With().Str("component", "journal").Logger(),
		nowF:   time.Now,
	}
}

// Record writes one entry. Best-effort: errors are logged and not returned.
func (j *Journal) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = j.nowF().UTC()
	}

	raw, err := json.Marshal(e)
	if err != nil {
		j.log.Error().Err(err).Msg("marshal journal entry")
		return
	}
	key := fmt.Sprintf("%s%d-%s", keyPrefix, e.Time.UnixNano(), e.ID)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		j.log.Error().Err(err).Msg("persist journal entry")
	}

	rec := otellog.Record{}
	rec.SetTimestamp(e.Time)
	rec.SetBody(otellog.StringValue("reconciled"))
	rec.AddAttributes(
		otellog.String("entry_id", e.ID),
		otellog.String("source", e.Source),
		otellog.String("verb", e.Verb),
		otellog.String("lock_state", e.LockState),
		otellog.String("protection_state", e.ProtectionState),
		otellog.Int("actions", len(e.Actions)),
	)
	j.logger.Emit(ctx, rec)
}

// List returns entries in chronological order, up to limit (0 means all).
func (j *Journal) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return entries, nil
}
