package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/refund-explainer/internal/domain"
)

// executeCommand runs refundctl with args and returns captured stdout and stderr
func executeCommand(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errBuf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errBuf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err = root.Execute()
	return out.String(), errBuf.String(), err
}

// writeJSON writes body to name in a temp dir and returns the path
func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const (
	priorRecord   = `{"tax_year": 2024, "wages": 70000, "w2_withholding": 11000}`
	currentRecord = `{"tax_year": 2024, "wages": 80000, "w2_withholding": 11000}`
)

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	if root.Use != "refundctl" {
		t.Errorf("root.Use = %q, want %q", root.Use, "refundctl")
	}

	want := []string{"explain", "presets", "apply", "fold", "batch", "history", "prune"}
	have := make(map[string]bool)
	for _, cmd := range root.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestExplain_JSON(t *testing.T) {
	dir := t.TempDir()
	prior := writeJSON(t, dir, "prior.json", priorRecord)
	current := writeJSON(t, dir, "current.json", currentRecord)

	out, stderr, err := executeCommand(t, "", "explain", "--prior", prior, "--current", current, "--json", "--no-archive")
	if err != nil {
		t.Fatalf("explain failed: %v\n%s", err, stderr)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result["prior_balance"].(float64) != 3759 {
		t.Errorf("prior_balance = %v, want 3759", result["prior_balance"])
	}
	if result["total_change_direction"] != string(domain.DecreasedRefund) {
		t.Errorf("direction = %v, want %s", result["total_change_direction"], domain.DecreasedRefund)
	}
	drivers := result["drivers"].([]any)
	if len(drivers) != 1 || drivers[0].(map[string]any)["field"] != "wages" {
		t.Errorf("expected a single wages driver, got %v", drivers)
	}
}

func TestExplain_Text(t *testing.T) {
	dir := t.TempDir()
	prior := writeJSON(t, dir, "prior.json", priorRecord)

	out, stderr, err := executeCommand(t, currentRecord, "explain", "--prior", prior, "--current", "-", "--no-archive")
	if err != nil {
		t.Fatalf("explain failed: %v\n%s", err, stderr)
	}

	for _, want := range []string{"2024: refund of $3,759", "FIELD", "income", "decreased_refund"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExplain_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeJSON(t, dir, "good.json", priorRecord)
	bad := writeJSON(t, dir, "bad.json", `{"tax_year": 2024, "wages": "lots"}`)
	broken := writeJSON(t, dir, "broken.json", `{"tax_year": `)

	tests := []struct {
		name      string
		args      []string
		wantField string
		wantText  string
	}{
		{
			name:     "missing current",
			args:     []string{"explain", "--prior", good},
			wantText: "--current is required",
		},
		{
			name:      "invalid field",
			args:      []string{"explain", "--prior", bad, "--current", good},
			wantField: "prior.wages",
		},
		{
			name:     "malformed JSON",
			args:     []string{"explain", "--prior", good, "--current", broken},
			wantText: "decode",
		},
		{
			name:     "missing file",
			args:     []string{"explain", "--prior", filepath.Join(dir, "nope.json"), "--current", good},
			wantText: "read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, "", append(tt.args, "--no-archive")...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantField != "" {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if len(verr.Fields) != 1 || verr.Fields[0].Field != tt.wantField {
					t.Errorf("fields = %+v, want %s", verr.Fields, tt.wantField)
				}
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not mention %q", err, tt.wantText)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	out, _, err := executeCommand(t, "", "presets", "--json")
	if err != nil {
		t.Fatalf("presets failed: %v", err)
	}

	var presets []domain.LifeEventPreset
	if err := json.Unmarshal([]byte(out), &presets); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(presets) != 8 || presets[0].Key != "got_married" {
		t.Errorf("expected 8 presets starting with got_married, got %d", len(presets))
	}

	text, _, err := executeCommand(t, "", "presets")
	if err != nil {
		t.Fatalf("presets failed: %v", err)
	}
	if !strings.Contains(text, "maxed_401k") {
		t.Errorf("table missing maxed_401k:\n%s", text)
	}
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	base := writeJSON(t, dir, "base.json", priorRecord)

	out, stderr, err := executeCommand(t, "", "apply", "maxed_401k", "--base", base, "--json")
	if err != nil {
		t.Fatalf("apply failed: %v\n%s", err, stderr)
	}

	var result struct {
		EventKey string             `json:"event_key"`
		After    map[string]float64 `json:"after"`
		Diff     map[string]float64 `json:"diff"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.EventKey != "maxed_401k" || result.After["wages"] != 46500 || result.Diff["wages"] != -23500 {
		t.Errorf("unexpected result %+v", result)
	}

	text, _, err := executeCommand(t, "", "apply", "maxed_401k", "--base", base)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !strings.Contains(text, "Balance: refund of $3,759 -> refund of") {
		t.Errorf("missing balance preview:\n%s", text)
	}
}

func TestApply_Errors(t *testing.T) {
	dir := t.TempDir()
	base := writeJSON(t, dir, "base.json", priorRecord)

	_, _, err := executeCommand(t, "", "apply", "won_lottery", "--base", base)
	if !errors.Is(err, domain.ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}

	_, _, err = executeCommand(t, "", "apply", "got_married", "--base", base, "--set", "bonus=1")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Field != "bonus" {
		t.Errorf("expected validation error on bonus, got %v", err)
	}

	if _, _, err := executeCommand(t, "", "apply", "--base", base); err == nil {
		t.Error("expected an error without an event key")
	}
}

func TestFold(t *testing.T) {
	out, stderr, err := executeCommand(t, priorRecord,
		"fold", "--base", "-", "--event", "maxed_401k", "--event", "got_married", "--event", "maxed_401k", "--json")
	if err != nil {
		t.Fatalf("fold failed: %v\n%s", err, stderr)
	}

	var result struct {
		ActiveEvents []string           `json:"active_events"`
		Diff         map[string]float64 `json:"diff"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if strings.Join(result.ActiveEvents, ",") != "got_married,maxed_401k" {
		t.Errorf("active events = %v, want catalog order", result.ActiveEvents)
	}
	if result.Diff["wages"] != -23500 {
		t.Errorf("wage diff = %v, want -23500", result.Diff["wages"])
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	input := writeJSON(t, dir, "pairs.json", `{"pairs": [
		{"label": "raise", "prior_data": `+priorRecord+`, "current_data": `+currentRecord+`},
		{"label": "same", "prior_data": `+priorRecord+`, "current_data": `+priorRecord+`}
	]}`)
	output := filepath.Join(dir, "results.json")

	_, stderr, err := executeCommand(t, "", "batch", "-i", input, "-o", output, "--no-archive")
	if err != nil {
		t.Fatalf("batch failed: %v\n%s", err, stderr)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("results not written: %v", err)
	}
	var got struct {
		PairCount int `json:"pair_count"`
		Failed    int `json:"failed"`
		Results   []struct {
			Index  int            `json:"index"`
			Label  string         `json:"label"`
			Result map[string]any `json:"result"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("results are not JSON: %v", err)
	}
	if got.PairCount != 2 || got.Failed != 0 {
		t.Fatalf("pair_count=%d failed=%d, want 2 and 0", got.PairCount, got.Failed)
	}
	if got.Results[0].Label != "raise" || got.Results[1].Label != "same" {
		t.Errorf("results out of order: %+v", got.Results)
	}
	if got.Results[1].Result["total_change_direction"] != string(domain.NoChange) {
		t.Errorf("identical pair should be no_change, got %v", got.Results[1].Result["total_change_direction"])
	}
}

func TestBatch_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := executeCommand(t, "", "batch"); err == nil || !strings.Contains(err.Error(), "--input") {
		t.Errorf("expected missing input error, got %v", err)
	}

	empty := writeJSON(t, dir, "empty.json", `{"pairs": []}`)
	if _, _, err := executeCommand(t, "", "batch", "-i", empty); err == nil {
		t.Error("expected an error for an empty batch")
	}

	invalid := writeJSON(t, dir, "invalid.json", `{"pairs": [{"prior_data": `+priorRecord+`, "current_data": {"tax_year": 2024, "dependents_count": 1.5}}]}`)
	_, _, err := executeCommand(t, "", "batch", "-i", invalid)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Field != "pairs[0].current_data.dependents_count" {
		t.Errorf("expected validation error on pairs[0].current_data.dependents_count, got %v", err)
	}
}

func TestHistoryAndPrune(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REFUND_ARCHIVE_DRIVER", "sqlite")
	t.Setenv("REFUND_ARCHIVE_SQLITE_PATH", filepath.Join(dir, "archive.db"))

	prior := writeJSON(t, dir, "prior.json", priorRecord)
	current := writeJSON(t, dir, "current.json", currentRecord)
	if _, stderr, err := executeCommand(t, "", "explain", "--prior", prior, "--current", current); err != nil {
		t.Fatalf("explain failed: %v\n%s", err, stderr)
	}

	out, stderr, err := executeCommand(t, "", "history", "--json")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, stderr)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0]["source"] != "cli" {
		t.Fatalf("expected one cli entry, got %v", entries)
	}

	out, _, err = executeCommand(t, "", "prune", "--older-than", "1h")
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(out, "Pruned 0 explanations older than 1h0m0s") {
		t.Errorf("unexpected prune output: %s", out)
	}
}
