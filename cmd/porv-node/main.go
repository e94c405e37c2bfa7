package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"reserves.dev/verifier/node"
	"reserves.dev/verifier/node/store"
	"reserves.dev/verifier/reserves"
)

var (
	getenv      = os.Getenv
	dotEnvPaths = []string{".env"}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := node.LoadDotEnv(dotEnvPaths...); err != nil {
		_, _ = fmt.Fprintf(stderr, "dotenv: %v\n", err)
		return 2
	}
	defaults := node.DefaultConfig()
	if err := node.ApplyEnv(&defaults, getenv); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	cfg := defaults
	fs := flag.NewFlagSet("porv-node", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Network, "network", defaults.Network, "address network (auto/mainnet/testnet3/signet/regtest)")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "data directory for the outcome store")
	fs.StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", defaults.MaxBodyBytes, "max POST /proof body size")
	fs.BoolVar(&cfg.StrictOutput, "strict-output", defaults.StrictOutput, "require the output to pay the bdk-reserves burn script")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := printConfig(stdout, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if *dryRun {
		return 0
	}

	logs, err := node.NewLoggers(stdout, cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return 2
	}
	db, err := store.Open(cfg.DataDir, cfg.Network)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	defer func() { _ = db.Close() }()
	logs.Store.Infof("Opened outcome store at %s", store.DBPath(cfg.DataDir))

	vcfg, err := cfg.VerifierConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	verifier := reserves.NewVerifier(vcfg)
	srv := node.NewServer(cfg, verifier, db, node.NewMetrics(), logs)
	if err := srv.Run(ctx); err != nil {
		logs.Node.Errorf("Server failed: %v", err)
		return 1
	}
	return 0
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
