package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blockmarch.dev/internal/sim/pathfind"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.ResolutionPasses != 100 || tu.TickRateHz != 5 {
		t.Fatalf("unexpected values: %+v", tu)
	}
	models, err := tu.Models()
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(models) != len(tu.AgentKinds) {
		t.Fatalf("models=%d kinds=%d", len(models), len(tu.AgentKinds))
	}
	if _, ok := models["brute"].(*pathfind.ExprModel); !ok {
		t.Fatalf("brute should use an expression model, got %T", models["brute"])
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	tu, err := Load(writeFile(t, "tick_rate_hz: 20\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 20 {
		t.Fatalf("tick_rate_hz=%d", tu.TickRateHz)
	}
	if tu.MaxPathTries != pathfind.DefaultMaxTries || tu.DefaultAgentKind != "runner" {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoad_AgentKindsReplaceDefaults(t *testing.T) {
	tu, err := Load(writeFile(t, "default_agent_kind: tank\nagent_kinds:\n  tank:\n    life: 9\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if names := tu.KindNames(); len(names) != 1 || names[0] != "tank" {
		t.Fatalf("kinds=%v", names)
	}
	if _, ok := Defaults().AgentKinds["runner"]; !ok {
		t.Fatalf("Defaults lost runner")
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "tick_rate_hz: [",
		"zero passes":   "resolution_passes: 0\n",
		"bad model":     "agent_kinds:\n  runner:\n    cost_model: \"distance +\"\n",
		"missing kind":  "default_agent_kind: ghost\n",
		"negative life": "agent_kinds:\n  runner:\n    life: -1\n",
		"old protocol":  "protocol_version: \"0.9\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeFile(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.HasPrefix(err.Error(), "tuning.yaml: ") {
			t.Fatalf("%s: error not prefixed: %v", name, err)
		}
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel(" Standard ")
	if err != nil || m.Score(1, 1, 1, 1, 1) != 5 {
		t.Fatalf("standard: %v", err)
	}
	m, err = ParseModel("no_extras")
	if err != nil || m.Score(1, 1, 1, 1, 1) != 3 {
		t.Fatalf("no_extras: %v", err)
	}
}
