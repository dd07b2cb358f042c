// Package reconciler serializes all state changes. One worker goroutine
// drains a queue of updates, runs each through the engine, persists the next
// state, and applies the resulting actions. Persist happens before actuation
// so a crash mid-batch replays the actions instead of losing the state.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/actuator"
	"device-protect/agent/internal/command"
	"device-protect/agent/internal/engine"
	"device-protect/agent/internal/journal"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
	"device-protect/agent/internal/telemetry"
)

const queueDepth = 64

type envelope struct {
	update command.StateUpdate
	// reply, when non-nil, receives the reconciliation outcome so Process
	// can block on it.
	reply chan result
}

type result struct {
	state domain.DeviceState
	err   error
}

// Worker owns the read-reconcile-persist-actuate cycle.
type Worker struct {
	store    state.Store
	engine   *engine.Engine
	actuator *actuator.Actuator
	journal  *journal.Journal
	metrics  *telemetry.Metrics
	log      zerolog.Logger

	queue chan envelope
	nowF  func() time.Time

	// shutdown, when set, is invoked after a self-uninstall completes so the
	// process can exit instead of keeping dead loops alive.
	shutdown func()

	timerMu    sync.Mutex
	breakTimer *time.Timer
}

// New returns a Worker. journal and metrics may be nil in tests.
func New(store state.Store, eng *engine.Engine, act *actuator.Actuator, jrnl *journal.Journal, metrics *telemetry.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		store:    store,
		engine:   eng,
		actuator: act,
		journal:  jrnl,
		metrics:  metrics,
		log:      log.With().Str("component", "reconciler").Logger(),
		queue:    make(chan envelope, queueDepth),
		nowF:     time.Now,
	}
}

// OnSelfUninstall registers fn to run after a self-uninstall action has been
// applied. Call before Run.
func (w *Worker) OnSelfUninstall(fn func()) { w.shutdown = fn }

// Submit enqueues an update without waiting for its outcome. Returns ctx.Err
// if the context ends before there is queue room.
func (w *Worker) Submit(ctx context.Context, u command.StateUpdate) error {
	select {
	case w.queue <- envelope{update: u}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process enqueues an update and blocks until it has been reconciled,
// returning the resulting state. Used by callers that need the outcome, such
// as the offline unlock validator.
func (w *Worker) Process(ctx context.Context, u command.StateUpdate) (domain.DeviceState, error) {
	reply := make(chan result, 1)
	select {
	case w.queue <- envelope{update: u, reply: reply}:
	case <-ctx.Done():
		return domain.DeviceState{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.state, res.err
	case <-ctx.Done():
		return domain.DeviceState{}, ctx.Err()
	}
}

// Run drains the queue until ctx ends. Exactly one Run must be active; it is
// the serialization point for every state change.
func (w *Worker) Run(ctx context.Context) error {
	defer w.stopBreakTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-w.queue:
			st, err := w.handle(ctx, env.update)
			if env.reply != nil {
				env.reply <- result{state: st, err: err}
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, u command.StateUpdate) (domain.DeviceState, error) {
	cur, err := w.store.Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		cur = domain.NewDeviceState("")
	} else if err != nil {
		w.log.Error().Err(err).Msg("load state")
		return domain.DeviceState{}, fmt.Errorf("reconciler: load state: %w", err)
	}

	next, actions := w.engine.Reconcile(cur, u, w.nowF())

	// Persist before actuating. Clear-state batches skip the save; the
	// actuator's clear would race it.
	if !containsClear(actions) {
		if err := w.store.Save(ctx, next); err != nil {
			w.log.Error().Err(err).Msg("persist state")
			return cur, fmt.Errorf("reconciler: persist state: %w", err)
		}
	}

	if w.metrics != nil {
		w.metrics.CommandReceived(ctx, string(u.Source))
	}

	applied := make([]string, 0, len(actions))
	var uninstalled bool
	for _, act := range actions {
		if act.Type == engine.ActionScheduleBreakCheck {
			w.scheduleBreakCheck(ctx, act.At)
			applied = append(applied, act.String())
			continue
		}
		res := w.actuator.Apply(ctx, act, next)
		if w.metrics != nil {
			if res.Err != nil {
				w.metrics.ActionFailed(ctx, string(act.Type))
			} else {
				w.metrics.ActionApplied(ctx, string(act.Type))
			}
		}
		applied = append(applied, act.String())
		if act.Type == engine.ActionSelfUninstall && res.Err == nil {
			uninstalled = true
		}
	}

	if w.journal != nil {
		w.journal.Record(ctx, journal.Entry{
			Source:          string(u.Source),
			Verb:            string(u.Verb),
			LockState:       string(next.LockState),
			ProtectionState: string(next.ProtectionState),
			Actions:         applied,
		})
	}

	w.log.Info().
		Str("source", string(u.Source)).
		Str("verb", string(u.Verb)).
		Str("lock_state", string(next.LockState)).
		Str("protection_state", string(next.ProtectionState)).
		Int("actions", len(applied)).
		Msg("reconciled")

	if uninstalled && w.shutdown != nil {
		w.shutdown()
	}
	return next, nil
}

// scheduleBreakCheck arms (or re-arms) the single break timer. When it fires
// the worker feeds itself a synthetic break-expired tick; the engine decides
// whether the break really ended.
func (w *Worker) scheduleBreakCheck(ctx context.Context, at time.Time) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.breakTimer != nil {
		w.breakTimer.Stop()
	}
	w.breakTimer = time.AfterFunc(d, func() {
		err := w.Submit(ctx, command.StateUpdate{
			Source: command.SourceInternal,
			Verb:   command.VerbBreakExpired,
		})
		if err != nil {
			w.log.Warn().Err(err).Msg("break tick dropped")
		}
	})
	w.log.Debug().Time("at", at).Msg("break check scheduled")
}

func (w *Worker) stopBreakTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.breakTimer != nil {
		w.breakTimer.Stop()
		w.breakTimer = nil
	}
}

func containsClear(actions []engine.Action) bool {
	for _, a := range actions {
		if a.Type == engine.ActionClearState {
			return true
		}
	}
	return false
}
