// Package defense watches the device's foreground UI and steers the user
// away from screens that could remove the agent or its privileges. It is the
// fallback enforcement layer when device-owner restrictions are unavailable.
package defense

import "context"

// Finding describes why a foreground screen was judged dangerous.
type Finding struct {
	// Rule names the policy rule that matched, e.g. "self_targeted".
	Rule string
	// Term is the text or package that triggered the rule.
	Term string
}

// Detector judges a foreground snapshot. A nil finding means the screen is
// harmless.
type Detector interface {
	Inspect(ctx context.Context, pkg string, texts []string) (*Finding, error)
}
