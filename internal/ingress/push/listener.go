// Package push receives authority commands over MQTT. Payloads are flat
// JSON objects of string values, the same shape the authority sends through
// its mobile push channel.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"device-protect/agent/internal/command"
	"device-protect/agent/internal/telemetry"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds, paho's own unit
)

// Submitter is where accepted updates go; satisfied by the reconciler worker.
type Submitter interface {
	Submit(ctx context.Context, u command.StateUpdate) error
}

// Options configures the push listener.
type Options struct {
	BrokerURL string
	Username  string
	Password  string
	// DeviceID scopes the subscription topic and the MQTT client ID.
	DeviceID string
}

// Listener subscribes to the device's command topic and feeds normalized
// updates to the reconciler.
type Listener struct {
	opts    Options
	worker  Submitter
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewListener returns a Listener. metrics may be nil in tests.
func NewListener(opts Options, worker Submitter, metrics *telemetry.Metrics, log zerolog.Logger) *Listener {
	return &Listener{
		opts:    opts,
		worker:  worker,
		metrics: metrics,
		log:     log.With().Str("component", "push").Logger(),
	}
}

func (l *Listener) topic() string {
	return fmt.Sprintf("devices/%s/commands", l.opts.DeviceID)
}

// Run connects, subscribes, and blocks until ctx ends. Paho reconnects on
// its own; the subscription is re-established from the OnConnect hook so it
// survives broker restarts.
func (l *Listener) Run(ctx context.Context) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		l.handle(ctx, msg.Payload())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.opts.BrokerURL)
	opts.SetClientID("agent-" + l.opts.DeviceID)
	if l.opts.Username != "" {
		opts.SetUsername(l.opts.Username)
		opts.SetPassword(l.opts.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(c mqtt.Client) {
		if token := c.Subscribe(l.topic(), 1, handler); token.Wait() && token.Error() != nil {
			l.log.Error().Err(token.Error()).Str("topic", l.topic()).Msg("subscribe failed")
			return
		}
		l.log.Info().Str("topic", l.topic()).Msg("subscribed")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		l.log.Warn().Err(err).Msg("broker connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("push: connect %s: %w", l.opts.BrokerURL, token.Error())
	}
	defer client.Disconnect(disconnectQuiesce)

	<-ctx.Done()
	return ctx.Err()
}

func (l *Listener) handle(ctx context.Context, payload []byte) {
	var data map[string]string
	if err := json.Unmarshal(payload, &data); err != nil {
		l.log.Warn().Err(err).Msg("undecodable push payload")
		l.reject(ctx)
		return
	}
	u, err := command.NormalizePush(data)
	if err != nil {
		l.log.Warn().Err(err).Msg("push command dropped")
		l.reject(ctx)
		return
	}
	if err := l.worker.Submit(ctx, u); err != nil {
		l.log.Warn().Err(err).Msg("push command not enqueued")
	}
}

func (l *Listener) reject(ctx context.Context) {
	if l.metrics != nil {
		l.metrics.CommandRejected(ctx, string(command.SourcePush))
	}
}
