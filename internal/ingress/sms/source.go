// Package sms turns inbound text messages into state updates. SMS is the
// last-resort channel: it works with no data connectivity, so its commands
// are restricted to the force verbs and to the enrolled authority number.
package sms

import "context"

// Message is one inbound text.
type Message struct {
	// ID identifies the message for suppression.
	ID     string
	Sender string
	Body   string
}

// Source delivers inbound texts. Implementations bridge whatever transport
// actually carries them (a modem, a platform broadcast, an MQTT relay).
type Source interface {
	// Messages returns the delivery channel. Closed when the source stops.
	Messages() <-chan Message
	// Suppress hides a consumed command message from the device inbox.
	// Best-effort.
	Suppress(ctx context.Context, id string) error
}
