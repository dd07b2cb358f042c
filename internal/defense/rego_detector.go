package defense

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const defensePackageQuery = "data.agent.defense.findings"

// Default Rego policy. It flags the OS screens that can kill or remove the
// agent: settings pages mentioning the agent together with a destructive
// term, and the device-admin deactivation surfaces.
const defaultRegoRules = `package agent.defense

dangerous_terms := [
	"uninstall",
	"force stop",
	"force close",
	"clear data",
	"clear storage",
	"deactivate",
	"remove device admin",
]

restricted_packages := {
	"com.android.settings.deviceadminadd",
	"com.android.packageinstaller.uninstall",
	"com.miui.securitycenter",
	"com.samsung.android.sm",
}

findings contains f if {
	some p in restricted_packages
	p == input.package
	f := {"rule": "restricted_package", "term": p}
}

findings contains f if {
	self_targeted
	some t in input.texts
	some term in dangerous_terms
	contains(t, term)
	f := {"rule": "self_targeted", "term": term}
}

findings contains f if {
	some t in input.texts
	contains(t, "device admin")
	f := {"rule": "admin_screen", "term": "device admin"}
}

self_targeted if {
	input.app_label != ""
	some t in input.texts
	contains(t, input.app_label)
}
`

// RegoDetector evaluates foreground snapshots against Rego rules compiled at
// construction time.
type RegoDetector struct {
	compiler *ast.Compiler
	appLabel string
}

// NewRegoDetector compiles the default rules plus, when rulesPath is
// non-empty, an extra module loaded from disk. appLabel is the agent's
// user-visible name, matched to tell self-targeted screens apart from the
// user managing other apps.
func NewRegoDetector(appLabel, rulesPath string) (*RegoDetector, error) {
	modules := map[string]string{"default.rego": defaultRegoRules}
	if rulesPath != "" {
		raw, err := os.ReadFile(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("defense: read rules %s: %w", rulesPath, err)
		}
		modules["custom.rego"] = string(raw)
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("defense: compile rules: %w", err)
	}
	return &RegoDetector{compiler: compiler, appLabel: strings.ToLower(appLabel)}, nil
}

// Inspect evaluates one snapshot. Matching is case-insensitive.
func (d *RegoDetector) Inspect(ctx context.Context, pkg string, texts []string) (*Finding, error) {
	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}
	input := map[string]interface{}{
		"package":   strings.ToLower(pkg),
		"texts":     lowered,
		"app_label": d.appLabel,
	}

	q := rego.New(
		rego.Query(defensePackageQuery),
		rego.Compiler(d.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("defense: eval rules: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}
	matches, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok || len(matches) == 0 {
		return nil, nil
	}
	m, ok := matches[0].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	f := &Finding{}
	if v, ok := m["rule"].(string); ok {
		f.Rule = v
	}
	if v, ok := m["term"].(string); ok {
		f.Term = v
	}
	return f, nil
}
