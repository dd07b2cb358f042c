// Package command turns heterogeneous inbound command payloads (push data
// maps, SMS text, poll JSON) into one canonical StateUpdate value consumed
// by the reconciliation engine.
package command

import (
	"errors"
	"time"
)

// Source tags which ingress channel produced an update.
type Source string

const (
	SourcePush Source = "push"
	SourceSMS  Source = "sms"
	SourcePoll Source = "poll"
	// SourceInternal marks synthetic updates the agent feeds itself
	// (break-expiry ticks, offline unlock).
	SourceInternal Source = "internal"
)

// Verb is a command action selector. A verb takes precedence over bare state
// flags carried in the same update.
type Verb string

const (
	VerbNone             Verb = ""
	VerbLockDevice       Verb = "LOCK_DEVICE"
	VerbUnlockDevice     Verb = "UNLOCK_DEVICE"
	VerbTemporalUnlock   Verb = "TEMPORAL_UNLOCK"
	VerbRemoveProtection Verb = "REMOVE_PROTECTION"
	// VerbSync requests a full-state refresh; it carries no transition of
	// its own, bare fields in the payload merge normally.
	VerbSync Verb = "SYNC"
	// VerbBreakExpired is the synthetic tick re-entering the engine when a
	// temporary unlock elapses. Never produced by an external channel.
	VerbBreakExpired Verb = "BREAK_EXPIRED"
)

// StateUpdate is a partial set of fields to merge into DeviceState. Nil
// pointers mean "no change"; the engine never resets an absent field.
type StateUpdate struct {
	Source Source
	Verb   Verb

	Locked    *bool // is_freezed
	Protected *bool // is_protected
	Message   *string
	Amount    *int
	CallTo    *string
	HideIcon  *bool

	// BreakDuration applies to VerbTemporalUnlock.
	BreakDuration time.Duration

	// UnlockCodes, when non-nil and non-empty, replaces the stored offline
	// code set entirely. Stale codes from a prior campaign are invalidated
	// by any fresh non-empty delivery.
	UnlockCodes []string

	// ConsumeCode carries the digest of an offline code being spent by the
	// unlock validator alongside VerbUnlockDevice.
	ConsumeCode string

	// AutoUninstall short-circuits all other processing for this update.
	AutoUninstall bool

	UpdateURL  string
	AppVersion int

	// SenderVerified is set for SMS updates whose sender matched the
	// authorized caller number.
	SenderVerified bool
}

// Normalization failures. Untrusted senders are fatal rejections; malformed
// payloads are dropped. Malformed individual fields inside an otherwise
// valid payload are ignored instead.
var (
	ErrMalformed       = errors.New("command: malformed payload")
	ErrUntrustedSender = errors.New("command: untrusted sender")
)
