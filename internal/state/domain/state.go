// Package domain defines the device protection state shared by all agent
// components. DeviceState is a value type: the reconciliation engine derives
// a new value from the current one, and only the reconciler worker persists
// it.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// LockState says whether the device should currently show the blocking lock
// screen.
type LockState string

const (
	// LockActive means the device is usable.
	LockActive LockState = "ACTIVE"
	// LockFrozen means the blocking lock screen must be shown.
	LockFrozen LockState = "FROZEN"
)

// ProtectionState says whether uninstall/admin-deactivation is blocked.
type ProtectionState string

const (
	ProtectionEnabled  ProtectionState = "ENABLED"
	ProtectionDisabled ProtectionState = "DISABLED"
)

// DeviceState is the last-known desired state of the device, durable in the
// local store. One record per device.
type DeviceState struct {
	DeviceID         string          `json:"device_id"`
	SetupComplete    bool            `json:"setup_complete"`
	LockState        LockState       `json:"lock_state"`
	ProtectionState  ProtectionState `json:"protection_state"`
	UninstallAllowed bool            `json:"uninstall_allowed"`
	Message          string          `json:"message,omitempty"`
	EMIAmount        int             `json:"emi_amount,omitempty"`
	// AuthorizedCallerNumber is the only number allowed to reach the holder
	// during lock, and the only SMS sender whose commands are trusted.
	AuthorizedCallerNumber string `json:"call_to,omitempty"`
	// BreakEnd suppresses lock-screen display until it passes. It never
	// changes LockState itself.
	BreakEnd   time.Time `json:"break_end,omitempty"`
	IconHidden bool      `json:"icon_hidden,omitempty"`
	// UnlockCodeDigests holds SHA-256 digests of the single-use offline
	// unlock codes. Plaintext codes are never stored.
	UnlockCodeDigests []string `json:"unlock_code_digests,omitempty"`
}

// NewDeviceState returns the enrollment-default state: unlocked, protection
// off, setup incomplete. Uninstall is allowed until protection is enabled.
func NewDeviceState(deviceID string) DeviceState {
	return DeviceState{
		DeviceID:         deviceID,
		LockState:        LockActive,
		ProtectionState:  ProtectionDisabled,
		UninstallAllowed: true,
	}
}

// OnBreak reports whether a temporary unlock is active at the given time.
func (s DeviceState) OnBreak(now time.Time) bool {
	return !s.BreakEnd.IsZero() && now.Before(s.BreakEnd)
}

// HasUnlockCode reports whether digest is one of the stored offline codes.
func (s DeviceState) HasUnlockCode(digest string) bool {
	for _, d := range s.UnlockCodeDigests {
		if d == digest {
			return true
		}
	}
	return false
}

// WithoutUnlockCode returns a copy of the digest set with digest removed.
// Codes are single-use; the engine calls this when one is consumed.
func (s DeviceState) WithoutUnlockCode(digest string) []string {
	out := make([]string, 0, len(s.UnlockCodeDigests))
	for _, d := range s.UnlockCodeDigests {
		if d != digest {
			out = append(out, d)
		}
	}
	return out
}

// CodeDigest returns the hex SHA-256 digest of a trimmed unlock code. The
// digest is deterministic so reconciliation stays a pure function.
func CodeDigest(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// DigestCodes maps plaintext codes to their digests, dropping empties after
// trimming. Order is preserved; duplicates collapse to one entry.
func DigestCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if strings.TrimSpace(c) == "" {
			continue
		}
		d := CodeDigest(c)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
