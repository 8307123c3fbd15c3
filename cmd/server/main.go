package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/josh-segal/text-me-assistant/internal/config"
	"github.com/josh-segal/text-me-assistant/internal/services"
	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of an admin password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := services.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Path, cfg.Logging.Level); err != nil {
		panic(err)
	}
	defer func() {
		logger.Info("Server shutting down")
		_ = logger.Sync()
	}()

	srv, cleanup, err := SetupServer(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
		return
	}

	// StartServer returns once in-flight requests have drained
	err = StartServer(srv)
	cleanup()
	if err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// loadConfig reads the config file when given, then applies the environment
// and decrypts stored secrets
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if cfg, err = config.LoadConfig(absPath); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.DecryptSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
