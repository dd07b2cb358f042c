// enroll performs one-shot device setup: generates the device identity and
// signing key, takes device-owner restrictions, and persists the initial
// protected state. Idempotent: an already-enrolled device is left unchanged.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/config"
	"device-protect/agent/internal/enroll"
	"device-protect/agent/internal/localdb"
	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/state"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatal().Err(err).Msg("create data dir")
	}

	db, err := localdb.Open(filepath.Join(cfg.DataDir, "agent.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	store := state.NewBadgerStore(db)
	policy := platform.NewLogging(log, true)

	enroller := enroll.New(store, policy, cfg.DataDir, cfg.AuthorizedNumber, log)
	st, err := enroller.Enroll(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("enrollment failed")
	}
	log.Info().Str("device_id", st.DeviceID).Msg("device enrolled")
}
