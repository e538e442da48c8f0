package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	out, _, err = runCLI(t, "", "config", "validate", "--path", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestRecoverRawImage(t *testing.T) {
	tmp := t.TempDir()
	imagePath := filepath.Join(tmp, "disk.img")
	outputPath := filepath.Join(tmp, "recovered.img")
	reportPath := filepath.Join(tmp, "report.json")

	raw := make([]byte, 2*128)
	for i := range raw {
		raw[i] = byte(i*7 + 3)
	}
	if err := os.WriteFile(imagePath, raw, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	missingCfg := filepath.Join(tmp, "no-config.toml")
	stdout, _, err := runCLI(t, missingCfg, "recover", imagePath,
		"--cylinders", "1", "--heads", "1", "--sectors", "2", "--sector-size", "128",
		"--output", outputPath, "--report", reportPath, "--json")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("recover stdout is not JSON: %v\n%s", err, stdout)
	}
	if _, ok := doc["disk_diagnostics"]; !ok {
		t.Fatalf("missing disk_diagnostics key in %s", stdout)
	}

	recovered, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read recovered image: %v", err)
	}
	if !bytes.Equal(recovered, raw) {
		t.Error("recovered image differs from clean input")
	}

	reportData, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	requireContains(t, string(reportData), "overall_quality")
}

func TestRecoverSummaryTable(t *testing.T) {
	tmp := t.TempDir()
	imagePath := filepath.Join(tmp, "disk.img")
	raw := make([]byte, 2*128)
	if err := os.WriteFile(imagePath, raw, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	stdout, _, err := runCLI(t, filepath.Join(tmp, "none.toml"), "recover", imagePath,
		"--cylinders", "1", "--heads", "1", "--sectors", "2", "--sector-size", "128")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	requireContains(t, stdout, "Track")
}

func TestAnalyzeFluxFile(t *testing.T) {
	tmp := t.TempDir()
	fluxPath := filepath.Join(tmp, "track00.0.raw")

	var buf []byte
	for i := 0; i < 600; i++ {
		delta := uint32(200)
		if i%3 == 0 {
			delta = 400
		}
		buf = binary.LittleEndian.AppendUint32(buf, delta)
	}
	if err := os.WriteFile(fluxPath, buf, 0o644); err != nil {
		t.Fatalf("write flux: %v", err)
	}

	stdout, _, err := runCLI(t, filepath.Join(tmp, "none.toml"), "analyze", fluxPath, "--bands", "2", "--json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var rpt analyzeReport
	if err := json.Unmarshal([]byte(stdout), &rpt); err != nil {
		t.Fatalf("analyze stdout is not JSON: %v\n%s", err, stdout)
	}
	if rpt.Transitions != 600 {
		t.Errorf("transitions = %d, want 600", rpt.Transitions)
	}
	if len(rpt.Bands) != 2 {
		t.Fatalf("bands = %d, want 2", len(rpt.Bands))
	}
	if rpt.Bands[0].CenterTick >= rpt.Bands[1].CenterTick {
		t.Errorf("band centers not ascending: %+v", rpt.Bands)
	}
}

func TestVersionReportsKernels(t *testing.T) {
	stdout, _, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, stdout, "fluxrescue")
	requireContains(t, stdout, "decode kernels:")
}

func TestSessionsDisabledByDefault(t *testing.T) {
	_, _, err := runCLI(t, filepath.Join(t.TempDir(), "none.toml"), "sessions")
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("sessions with results disabled = %v, want disabled error", err)
	}
}
