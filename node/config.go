package node

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"reserves.dev/verifier/reserves"
)

type Config struct {
	Network      string `json:"network"`
	DataDir      string `json:"data_dir"`
	BindAddr     string `json:"bind_addr"`
	LogLevel     string `json:"log_level"`
	MaxBodyBytes int64  `json:"max_body_bytes"`
	// StrictOutput also requires the proof output to pay the bdk-reserves
	// burn script.
	StrictOutput bool `json:"strict_output"`
}

const (
	DefaultBindAddr = "localhost:8087"
	// DefaultMaxBodyBytes is the JSON body limit of POST /proof.
	DefaultMaxBodyBytes = 40960
	maxBodyBytesCap     = reserves.MaxProofBytes * 2
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".porv"
	}
	return filepath.Join(home, ".porv")
}

func DefaultConfig() Config {
	return Config{
		Network:      string(reserves.NetworkAuto),
		DataDir:      DefaultDataDir(),
		BindAddr:     DefaultBindAddr,
		LogLevel:     "info",
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment settings on cfg. BIND_ADDRESS takes
// precedence over PORT, which binds all interfaces.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("BIND_ADDRESS")); v != "" {
		cfg.BindAddr = v
	} else if p := strings.TrimSpace(getenv("PORT")); p != "" {
		cfg.BindAddr = net.JoinHostPort("0.0.0.0", p)
	}
	if v := strings.TrimSpace(getenv("PORV_NETWORK")); v != "" {
		cfg.Network = v
	}
	if v := strings.TrimSpace(getenv("PORV_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("PORV_DATADIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(getenv("PORV_STRICT_OUTPUT")); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PORV_STRICT_OUTPUT: %w", err)
		}
		cfg.StrictOutput = strict
	}
	return nil
}

// VerifierNetwork returns the network claimed addresses are decoded for.
func (c Config) VerifierNetwork() (reserves.Network, error) {
	return reserves.ParseNetwork(c.Network)
}

// VerifierConfig is the reserves.Config the service verifies proofs with.
func (c Config) VerifierConfig() (reserves.Config, error) {
	net, err := c.VerifierNetwork()
	if err != nil {
		return reserves.Config{}, err
	}
	return reserves.Config{Network: net, RequireBurnOutput: c.StrictOutput}, nil
}

func ValidateConfig(cfg Config) error {
	if _, err := cfg.VerifierNetwork(); err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be > 0")
	}
	if cfg.MaxBodyBytes > maxBodyBytesCap {
		return fmt.Errorf("max_body_bytes must be <= %d", maxBodyBytesCap)
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}
