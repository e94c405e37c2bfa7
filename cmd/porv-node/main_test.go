package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reserves.dev/verifier/node"
	"reserves.dev/verifier/node/store"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prevGetenv, prevPaths := getenv, dotEnvPaths
	getenv = func(k string) string { return env[k] }
	dotEnvPaths = nil
	t.Cleanup(func() { getenv, dotEnvPaths = prevGetenv, prevPaths })
}

func decodeConfig(t *testing.T, out []byte) node.Config {
	t.Helper()
	var cfg node.Config
	if err := json.NewDecoder(bytes.NewReader(out)).Decode(&cfg); err != nil {
		t.Fatalf("decode config: %v (out=%q)", err, out)
	}
	return cfg
}

func TestRunDryRunOK(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()
	var out, errOut bytes.Buffer

	code := run(context.Background(), []string{"--dry-run", "--datadir", dir, "--log-level", "INFO"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	cfg := decodeConfig(t, out.Bytes())
	if cfg.DataDir != dir || cfg.LogLevel != "info" || cfg.Network != "auto" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := os.Stat(store.DBPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("dry run must not open the store: %v", err)
	}
}

func TestRunEnvThenFlags(t *testing.T) {
	withEnv(t, map[string]string{
		"PORT":           "9000",
		"PORV_NETWORK":   "testnet3",
		"PORV_LOG_LEVEL": "DEBUG",
	})
	var out, errOut bytes.Buffer

	code := run(context.Background(), []string{"--dry-run", "--datadir", t.TempDir(), "--network", "signet", "--strict-output"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	cfg := decodeConfig(t, out.Bytes())
	if cfg.BindAddr != "0.0.0.0:9000" {
		t.Fatalf("bind=%q", cfg.BindAddr)
	}
	if cfg.Network != "signet" {
		t.Fatalf("flag should override env, network=%q", cfg.Network)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level=%q", cfg.LogLevel)
	}
	if !cfg.StrictOutput {
		t.Fatalf("strict_output not set by flag")
	}
}

func TestRunRejectsBadStrictOutputEnv(t *testing.T) {
	withEnv(t, map[string]string{"PORV_STRICT_OUTPUT": "maybe"})
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--dry-run", "--datadir", t.TempDir()}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "PORV_STRICT_OUTPUT") {
		t.Fatalf("stderr=%q", errOut.String())
	}
}

func TestRunDotEnvFile(t *testing.T) {
	withEnv(t, nil)
	getenv = os.Getenv
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORV_NETWORK=regtest\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	dotEnvPaths = []string{path}
	t.Cleanup(func() { _ = os.Unsetenv("PORV_NETWORK") })

	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--dry-run", "--datadir", t.TempDir()}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	if cfg := decodeConfig(t, out.Bytes()); cfg.Network != "regtest" {
		t.Fatalf("network=%q", cfg.Network)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	withEnv(t, nil)
	cases := [][]string{
		{"--dry-run", "--network", "dogecoin"},
		{"--dry-run", "--log-level", "trace"},
		{"--dry-run", "--bind", "nope"},
		{"--dry-run", "--max-body-bytes", "0"},
		{"--no-such-flag"},
	}
	for _, args := range cases {
		var out, errOut bytes.Buffer
		if code := run(context.Background(), args, &out, &errOut); code != 2 {
			t.Fatalf("args=%v: expected exit code 2, got %d", args, code)
		}
		if errOut.Len() == 0 {
			t.Fatalf("args=%v: expected stderr output", args)
		}
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	withEnv(t, map[string]string{"GIN_MODE": "test"})
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errOut bytes.Buffer
	code := run(ctx, []string{"--datadir", dir, "--bind", "127.0.0.1:0", "--network", "mainnet"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	if _, err := os.Stat(store.DBPath(dir)); err != nil {
		t.Fatalf("store not created: %v", err)
	}
	if !strings.Contains(out.String(), "Opened outcome store") {
		t.Fatalf("missing store log line: %q", out.String())
	}

	db, err := store.Open(dir, "mainnet")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if m := db.Manifest(); m == nil || m.Network != "mainnet" {
		t.Fatalf("manifest=%+v", m)
	}
}
