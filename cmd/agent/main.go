package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog"

	"device-protect/agent/internal/actuator"
	"device-protect/agent/internal/config"
	"device-protect/agent/internal/defense"
	"device-protect/agent/internal/engine"
	"device-protect/agent/internal/enroll"
	"device-protect/agent/internal/ingress/poll"
	"device-protect/agent/internal/ingress/push"
	"device-protect/agent/internal/ingress/sms"
	"device-protect/agent/internal/journal"
	"device-protect/agent/internal/localdb"
	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/reconciler"
	"device-protect/agent/internal/security"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/telemetry"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.Env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := localdb.Open(filepath.Join(cfg.DataDir, "agent.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	store := state.NewBadgerStore(db)
	ctx := context.Background()

	st, err := store.Load(ctx)
	if errors.Is(err, state.ErrNotFound) || (err == nil && !st.SetupComplete) {
		log.Fatal().Msg("device not enrolled, run the enroll command first")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("load state")
	}

	key, err := security.LoadKey(filepath.Join(cfg.DataDir, enroll.KeyFileName))
	if err != nil {
		log.Fatal().Err(err).Msg("load device key")
	}

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "deviceprotect-agent", cfg.OTLPInsecure)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}

	policy := platform.NewLogging(log, true)
	broadcaster := actuator.NewUnlockBroadcaster()
	act := actuator.New(policy, store, broadcaster, log)
	eng := engine.New(cfg.DefaultLockMessage, cfg.AppVersion)
	jrnl := journal.New(db, providers.LoggerProvider, log)
	worker := reconciler.New(store, eng, act, jrnl, metrics, log)

	detector, err := defense.NewRegoDetector(cfg.AppLabel, cfg.DefenseRulesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("defense rules")
	}
	monitor := defense.NewMonitor(store, policy, detector, metrics, cfg.MonitorEvery(), cfg.DefaultLockMessage, log)

	tokens := security.NewTokenIssuer(key, st.DeviceID, cfg.TokenIssuer, cfg.TokenAudience, cfg.DeviceTokenTTL())
	pollClient := poll.NewClient(cfg.APIBaseURL, st.DeviceID, cfg.AppVersion, tokens, cfg.RequestTimeout())
	poller := poll.NewPoller(pollClient, worker, metrics, cfg.PollEvery(), log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	worker.OnSelfUninstall(cancel)

	var g run.Group
	g.Add(func() error {
		return worker.Run(runCtx)
	}, func(error) {
		cancel()
	})
	g.Add(func() error {
		return monitor.Run(runCtx)
	}, func(error) {
		cancel()
	})
	g.Add(func() error {
		return poller.Run(runCtx)
	}, func(error) {
		cancel()
	})

	if cfg.MQTTBroker != "" {
		listener := push.NewListener(push.Options{
			BrokerURL: cfg.MQTTBroker,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			DeviceID:  st.DeviceID,
		}, worker, metrics, log)
		g.Add(func() error {
			return listener.Run(runCtx)
		}, func(error) {
			cancel()
		})

		if cfg.MQTTSMSTopic != "" {
			source, err := sms.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTUsername, cfg.MQTTPassword,
				"agent-sms-"+st.DeviceID, cfg.MQTTSMSTopic, log)
			if err != nil {
				log.Fatal().Err(err).Msg("sms bridge")
			}
			smsListener := sms.NewListener(source, store, worker, metrics, log)
			g.Add(func() error {
				return smsListener.Run(runCtx)
			}, func(error) {
				source.Close()
				cancel()
			})
		}
	}

	g.Add(run.SignalHandler(runCtx, os.Interrupt))

	log.Info().Str("device_id", st.DeviceID).Msg("agent started")
	if err := g.Run(); err != nil && !errors.Is(err, context.Canceled) {
		var sigErr run.SignalError
		if errors.As(err, &sigErr) {
			log.Info().Str("signal", sigErr.Signal.String()).Msg("agent stopped")
			return
		}
		log.Error().Err(err).Msg("agent stopped")
		os.Exit(1)
	}
	log.Info().Msg("agent stopped")
}
