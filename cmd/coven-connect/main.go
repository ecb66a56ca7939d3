// ABOUTME: Entry point for the coven-connect session bootstrap server
// ABOUTME: Provides serve, init, seed, token and health subcommands

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-connect/internal/auth"
	"github.com/2389/coven-connect/internal/config"
	"github.com/2389/coven-connect/internal/gateway"
	"github.com/2389/coven-connect/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __         ___ ___  _ __  _ __   ___  ___| |_
 / __/ _ \ \ / / _ \ '_ \ _____ / __/ _ \| '_ \| '_ \ / _ \/ __| __|
| (_| (_) \ V /  __/ | | |_____| (_| (_) | | | | | | |  __/ (__| |_
 \___\___/ \_/ \___|_| |_|      \___\___/|_| |_|_| |_|\___|\___|\__|
`

// defaultTokenTTL is used by `token` when --ttl is not given
const defaultTokenTTL = 30 * 24 * time.Hour

// getConfigPath returns the path to the connect config file.
// Priority: COVEN_CONNECT_CONFIG env var > XDG_CONFIG_HOME/coven/connect.yaml > ~/.config/coven/connect.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_CONNECT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "connect.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "connect.yaml")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: coven-connect <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                      Start the HTTP (and optional gRPC health) server")
	fmt.Fprintln(w, "  init [--force]             Write a default config file")
	fmt.Fprintln(w, "  seed --file PATH           Create companies and agents from a TOML seed file")
	fmt.Fprintln(w, "  token --subject NAME       Mint an admin API token")
	fmt.Fprintln(w, "  health                     Check server health")
}

func main() {
	// A missing .env is fine; variables may come from the environment
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Stdout)
	case "init":
		err = runInit(args, os.Stdout)
	case "seed":
		err = runSeed(ctx, args, os.Stdout)
	case "token":
		err = runToken(args, os.Stdout)
	case "health":
		err = runHealth(ctx, os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (string, *config.Config, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return configPath, nil, fmt.Errorf("loading config: %w", err)
	}
	return configPath, cfg, nil
}

func runServe(ctx context.Context, out io.Writer) error {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	configPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "gRPC:      %s\n", cfg.Server.GRPCAddr)
	}
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Path)
	if cfg.Events.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprint(out, "Events:    ")
		cyan.Fprintln(out, cfg.Events.Exchange)
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Fprintln(out, "    ! admin API is unauthenticated (auth.jwt_secret not set)")
	}
	fmt.Fprintln(out)

	logger.Info("starting coven-connect",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	color.New(color.FgGreen).Fprintf(out, "  ✓ Created config: %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  coven-connect seed --file companies.toml")
	fmt.Fprintln(out, "  coven-connect serve")
	return nil
}

func runSeed(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", "", "TOML seed file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file flag is required")
	}

	seed, err := store.LoadSeedFile(*file)
	if err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	created, err := store.ApplySeed(ctx, s, seed, setupLogger(cfg.Logging))
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(out, "  ✓ Seeded %d of %d companies into %s\n",
		created, len(seed.Companies), cfg.Database.Path)
	return nil
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "", "token subject (who the token is for)")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("--subject flag is required")
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	configPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", configPath)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

func runHealth(ctx context.Context, out io.Writer) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Fprintln(out, "healthy")
	return nil
}
