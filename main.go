package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/crypto/bcrypt"

	"votechain-backend/api"
	"votechain-backend/biometric"
	"votechain-backend/config"
	"votechain-backend/ledger"
	"votechain-backend/models"
	"votechain-backend/service"
	"votechain-backend/storage"
)

func main() {
	createAdmin := flag.String("create-admin", "", "create an admin account as username:password and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	if *createAdmin != "" {
		if err := bootstrapAdmin(store, *createAdmin); err != nil {
			logger.Error("failed to create admin", "error", err)
			os.Exit(1)
		}
		logger.Info("admin account created")
		return
	}

	verifier, err := biometric.New(cfg.BiometricMode, cfg.MatchThreshold)
	if err != nil {
		logger.Error("invalid biometric configuration", "error", err)
		os.Exit(1)
	}

	ethClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		logger.Error("failed to connect to ledger RPC", "url", cfg.RPCURL, "error", err)
		os.Exit(1)
	}
	defer ethClient.Close()

	contract := common.HexToAddress(cfg.ContractAddress)
	reader := ledger.NewClient(ethClient, contract, logger)
	submitter, err := ledger.NewSubmitter(ledger.SubmitterConfig{
		Backend:             ethClient,
		Contract:            contract,
		SigningKeyHex:       cfg.SigningKey,
		ChainID:             cfg.ChainID,
		GasPriceWei:         cfg.GasPriceWei,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		Logger:              logger,
	})
	if err != nil {
		logger.Error("failed to set up submitter", "error", err)
		os.Exit(1)
	}
	submitter.Start()
	defer submitter.Stop()

	metrics := service.NewMetricsCollector()
	elections := service.NewElectionService(reader, submitter, store, logger)
	votes := service.NewVoteService(reader, submitter, store, elections, verifier, metrics, logger)
	verification := service.NewVerificationService(reader, store, metrics, logger)
	auth := api.NewAuth(store, verifier, cfg.JWTSecret, cfg.AdminTokenTTL, logger)

	server := api.NewServer(cfg.ListenAddress, elections, votes, verification, auth, store, metrics, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func bootstrapAdmin(store *storage.Store, spec string) error {
	username, password, found := strings.Cut(spec, ":")
	if !found || username == "" || password == "" {
		return fmt.Errorf("expected username:password, got %q", spec)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return store.CreateAdmin(&models.Admin{
		Username:     username,
		PasswordHash: string(hash),
	})
}
