package poll

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"device-protect/agent/internal/command"
	"device-protect/agent/internal/telemetry"
)

// Submitter is where accepted updates go; satisfied by the reconciler worker.
type Submitter interface {
	Submit(ctx context.Context, u command.StateUpdate) error
}

// Poller runs the polling schedule: one round at startup, then one per
// interval. Each round retries transient failures with exponential backoff
// before giving up until the next tick.
type Poller struct {
	client   *Client
	worker   Submitter
	metrics  *telemetry.Metrics
	log      zerolog.Logger
	interval time.Duration
}

// NewPoller returns a Poller fetching through client every interval. metrics
// may be nil in tests.
func NewPoller(client *Client, worker Submitter, metrics *telemetry.Metrics, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		client:   client,
		worker:   worker,
		metrics:  metrics,
		log:      log.With().Str("component", "poll").Logger(),
		interval: interval,
	}
}

// Run polls until ctx ends. The boot round runs immediately so a device that
// was offline catches up without waiting a full interval.
func (p *Poller) Run(ctx context.Context) error {
	p.round(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		p.round(ctx)
	}); err != nil {
		return fmt.Errorf("poll: schedule: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	<-ctx.Done()
	return ctx.Err()
}

func (p *Poller) round(ctx context.Context) {
	var raw []byte
	op := func() error {
		var err error
		raw, err = p.client.Fetch(ctx)
		return err
	}
	retryStrategy := backoff.NewExponentialBackOff()
	retryStrategy.InitialInterval = 2 * time.Second
	retryStrategy.MaxElapsedTime = p.interval / 2
	if err := backoff.Retry(op, backoff.WithContext(retryStrategy, ctx)); err != nil {
		p.log.Warn().Err(err).Msg("poll round failed")
		if p.metrics != nil {
			p.metrics.PollFailed(ctx)
		}
		return
	}

	u, err := command.NormalizePoll(raw)
	if err != nil {
		p.log.Warn().Err(err).Msg("poll response dropped")
		if p.metrics != nil {
			p.metrics.CommandRejected(ctx, string(command.SourcePoll))
		}
		return
	}
	if err := p.worker.Submit(ctx, u); err != nil {
		p.log.Warn().Err(err).Msg("poll update not enqueued")
	}
}
