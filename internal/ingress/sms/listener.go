package sms

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/command"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/telemetry"
)

// Submitter is where accepted updates go; satisfied by the reconciler worker.
type Submitter interface {
	Submit(ctx context.Context, u command.StateUpdate) error
}

// Listener drains a Source, authenticates senders against the enrolled
// authority number, and feeds accepted commands to the reconciler. Matched
// command texts are suppressed from the inbox; everything else passes
// through untouched.
type Listener struct {
	source  Source
	store   state.Store
	worker  Submitter
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewListener returns a Listener. metrics may be nil in tests.
func NewListener(source Source, store state.Store, worker Submitter, metrics *telemetry.Metrics, log zerolog.Logger) *Listener {
	return &Listener{
		source:  source,
		store:   store,
		worker:  worker,
		metrics: metrics,
		log:     log.With().Str("component", "sms").Logger(),
	}
}

// Run consumes messages until ctx ends or the source closes.
func (l *Listener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-l.source.Messages():
			if !ok {
				return nil
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg Message) {
	st, err := l.store.Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		// Not enrolled: no authority number to authenticate against.
		return
	}
	if err != nil {
		l.log.Warn().Err(err).Msg("load state")
		return
	}

	u, err := command.NormalizeSMS(msg.Body, msg.Sender, st.AuthorizedCallerNumber)
	if errors.Is(err, command.ErrMalformed) {
		// Ordinary text, not a command. Leave it alone.
		return
	}
	if errors.Is(err, command.ErrUntrustedSender) {
		l.log.Warn().Msg("command text from unauthorized sender dropped")
		if l.metrics != nil {
			l.metrics.CommandRejected(ctx, string(command.SourceSMS))
		}
		return
	}
	if err != nil {
		l.log.Warn().Err(err).Msg("sms command dropped")
		return
	}

	if err := l.source.Suppress(ctx, msg.ID); err != nil {
		l.log.Warn().Err(err).Msg("suppress command text")
	}
	if err := l.worker.Submit(ctx, u); err != nil {
		l.log.Warn().Err(err).Msg("sms command not enqueued")
	}
}
