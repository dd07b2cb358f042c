package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics bundles the agent's counters. All methods are safe for concurrent
// use and never fail the caller.
type Metrics struct {
	commandsReceived otelmetric.Int64Counter
	commandsRejected otelmetric.Int64Counter
	actionsApplied   otelmetric.Int64Counter
	actionsFailed    otelmetric.Int64Counter
	defenseTriggers  otelmetric.Int64Counter
	pollFailures     otelmetric.Int64Counter
}

// NewMetrics registers the agent's instruments on provider.
func NewMetrics(provider otelmetric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("deviceprotect.agent")
	m := &Metrics{}
	var err error
	if m.commandsReceived, err = meter.Int64Counter("agent.commands.received",
		otelmetric.WithDescription("State updates accepted from an ingress channel")); err != nil {
		return nil, err
	}
	if m.commandsRejected, err = meter.Int64Counter("agent.commands.rejected",
		otelmetric.WithDescription("Raw commands dropped during normalization")); err != nil {
		return nil, err
	}
	if m.actionsApplied, err = meter.Int64Counter("agent.actions.applied",
		otelmetric.WithDescription("Enforcement actions applied successfully")); err != nil {
		return nil, err
	}
	if m.actionsFailed, err = meter.Int64Counter("agent.actions.failed",
		otelmetric.WithDescription("Enforcement actions that returned an error")); err != nil {
		return nil, err
	}
	if m.defenseTriggers, err = meter.Int64Counter("agent.defense.triggers",
		otelmetric.WithDescription("Foreground screens the uninstall defense navigated away from")); err != nil {
		return nil, err
	}
	if m.pollFailures, err = meter.Int64Counter("agent.poll.failures",
		otelmetric.WithDescription("Poll rounds that exhausted their retries")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) CommandReceived(ctx context.Context, source string) {
	m.commandsReceived.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) CommandRejected(ctx context.Context, source string) {
	m.commandsRejected.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) ActionApplied(ctx context.Context, action string) {
	m.actionsApplied.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("action", action)))
}

func (m *Metrics) ActionFailed(ctx context.Context, action string) {
	m.actionsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("action", action)))
}

func (m *Metrics) DefenseTriggered(ctx context.Context, rule string) {
	m.defenseTriggers.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("rule", rule)))
}

func (m *Metrics) PollFailed(ctx context.Context) {
	m.pollFailures.Add(ctx, 1)
}
