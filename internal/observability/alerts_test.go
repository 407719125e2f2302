package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type ruleFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

func loadRules(t *testing.T, name, group string) map[string]alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", name))
	require.NoError(t, err)

	var file ruleFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	for _, g := range file.Groups {
		if g.Name != group {
			continue
		}
		rules := make(map[string]alertRule, len(g.Rules))
		for _, r := range g.Rules {
			rules[r.Alert] = r
		}
		return rules
	}
	t.Fatalf("group %q missing from %s", group, name)
	return nil
}

func TestSettlementAlertRules(t *testing.T) {
	rules := loadRules(t, "settlement.yml", "settlement")

	cases := []struct {
		alert    string
		severity string
		anchor   string
		metric   string
	}{
		{"SettlementFailures", "critical", "failures", "odyssey_settlements_total"},
		{"SettlementSlow", "warning", "latency", "odyssey_settlement_duration_seconds_bucket"},
		{"LedgerDriftDetected", "critical", "ledger-drift", "odyssey_ledger_drifts_total"},
		{"IntegrityCheckMissing", "warning", "integrity-job", "odyssey_job_last_success_timestamp_seconds"},
	}
	require.Len(t, rules, len(cases))

	for _, tc := range cases {
		t.Run(tc.alert, func(t *testing.T) {
			rule, ok := rules[tc.alert]
			require.True(t, ok, "rule missing")
			require.Equal(t, tc.severity, rule.Labels["severity"])
			require.Equal(t, "docs/runbook-settlement.md#"+tc.anchor, rule.Annotations["runbook"])
			require.NotEmpty(t, rule.Annotations["summary"])
			require.NotEmpty(t, rule.Annotations["description"])
			require.NotEmpty(t, rule.For)
			require.Contains(t, rule.Expr, tc.metric)
		})
	}
}

func TestRunbookAnchorsExist(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-settlement.md"))
	require.NoError(t, err)
	runbook := string(data)
	for _, heading := range []string{"## failures", "## latency", "## ledger-drift", "## integrity-job"} {
		require.Contains(t, runbook, heading)
	}
}
