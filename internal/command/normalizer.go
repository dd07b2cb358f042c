package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// defaultBreakMinutes is used when TEMPORAL_UNLOCK arrives without a usable
// duration field.
const defaultBreakMinutes = 120

// NormalizePush canonicalizes a push data map. Numeric and boolean fields
// arrive as strings; malformed ones are ignored rather than failing the
// update. Unknown keys are ignored. An empty map is malformed.
func NormalizePush(data map[string]string) (StateUpdate, error) {
	if len(data) == 0 {
		return StateUpdate{}, fmt.Errorf("%w: empty push payload", ErrMalformed)
	}
	u := StateUpdate{Source: SourcePush}

	if cmd, ok := data["command"]; ok {
		u.Verb = Verb(strings.TrimSpace(cmd))
	}
	if v, ok := data["is_freezed"]; ok {
		b := parseFlag(v)
		u.Locked = &b
	}
	if v, ok := data["is_protected"]; ok {
		b := parseFlag(v)
		u.Protected = &b
	}
	if v, ok := data["message"]; ok {
		msg := v
		u.Message = &msg
	}
	if v, ok := data["call_to"]; ok {
		n := v
		u.CallTo = &n
	}
	if v, ok := data["amount"]; ok {
		if amt, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			u.Amount = &amt
		}
		// Malformed amounts fail soft: field dropped, update kept.
	}
	if v, ok := data["duration"]; ok {
		if mins, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && mins > 0 {
			u.BreakDuration = time.Duration(mins) * time.Minute
		}
	}
	if u.Verb == VerbTemporalUnlock && u.BreakDuration == 0 {
		u.BreakDuration = defaultBreakMinutes * time.Minute
	}
	if v, ok := data["unlock_codes"]; ok {
		u.UnlockCodes = splitCodes(v)
	}
	return u, nil
}

// SMS command substrings. UNLOCK_DEVICE_FORCE contains LOCK_DEVICE_FORCE,
// so match order matters.
var smsVerbs = []struct {
	marker string
	verb   Verb
}{
	{"REMOVE_PROTECTION_FORCE", VerbRemoveProtection},
	{"UNLOCK_DEVICE_FORCE", VerbUnlockDevice},
	{"LOCK_DEVICE_FORCE", VerbLockDevice},
}

// NormalizeSMS canonicalizes a free-text SMS command. The sender must match
// the stored authorized caller number or the message is rejected with
// ErrUntrustedSender and must not reach the engine. Text with no recognized
// command substring is malformed.
func NormalizeSMS(body, sender, authorizedNumber string) (StateUpdate, error) {
	var verb Verb
	for _, sv := range smsVerbs {
		if strings.Contains(body, sv.marker) {
			verb = sv.verb
			break
		}
	}
	if verb == VerbNone {
		return StateUpdate{}, fmt.Errorf("%w: no command in sms text", ErrMalformed)
	}
	if !SameNumber(sender, authorizedNumber) {
		return StateUpdate{}, fmt.Errorf("%w: %q", ErrUntrustedSender, sender)
	}
	return StateUpdate{
		Source:         SourceSMS,
		Verb:           verb,
		SenderVerified: true,
	}, nil
}

// pollResponse is the status endpoint schema. Every field is optional;
// absence means "no change".
type pollResponse struct {
	IsFreezed     *bool   `json:"is_freezed"`
	IsProtected   *bool   `json:"is_protected"`
	Amount        *int    `json:"amount"`
	Message       *string `json:"message"`
	CallTo        *string `json:"call_to"`
	HideIcon      *bool   `json:"hide_icon"`
	AutoUninstall *bool   `json:"auto_uninstall"`
	UpdateURL     *string `json:"update_url"`
	AppVersion    *int    `json:"app_version"`
	UnlockCodes   *string `json:"unlock_codes"`
}

// NormalizePoll canonicalizes a poll response body. Unparsable JSON is
// malformed; explicit null and absent fields both mean "no change".
func NormalizePoll(raw []byte) (StateUpdate, error) {
	var resp pollResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StateUpdate{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	u := StateUpdate{
		Source:    SourcePoll,
		Locked:    resp.IsFreezed,
		Protected: resp.IsProtected,
		Amount:    resp.Amount,
		Message:   resp.Message,
		CallTo:    resp.CallTo,
		HideIcon:  resp.HideIcon,
	}
	if resp.AutoUninstall != nil && *resp.AutoUninstall {
		u.AutoUninstall = true
	}
	if resp.UpdateURL != nil {
		u.UpdateURL = *resp.UpdateURL
	}
	if resp.AppVersion != nil {
		u.AppVersion = *resp.AppVersion
	}
	if resp.UnlockCodes != nil {
		u.UnlockCodes = splitCodes(*resp.UnlockCodes)
	}
	return u, nil
}

// splitCodes parses a comma-delimited code list, trimming entries and
// dropping empties. Returns nil for an effectively empty list so it is
// treated as absent and does not clear the stored set.
func splitCodes(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseFlag decodes the wire encoding for booleans: "1"/"true" is true,
// anything else is false.
func parseFlag(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "1" || s == "true"
}
