package bridge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/bridge/server"
)

// Service owns the gateway's full lifecycle: store, HTTP server, and task
// worker, with coordinated shutdown on SIGINT/SIGTERM.
type Service struct {
	cfg    *Config
	logger *zap.Logger

	db         *badger.DB
	client     *asynq.Client
	httpServer *server.Server
	queue      *QueueManager

	sigCh chan os.Signal
}

// NewService builds a service from a validated configuration.
func NewService(cfg *Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.DataDir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)

	httpServer := server.New(&server.Config{
		ListenAddr:    cfg.ListenAddr,
		SecretKey:     []byte(cfg.SecretKey),
		ChainID:       cfg.ChainID,
		LedgerAddress: cfg.Ledger(),
		PowDifficulty: cfg.PowDifficulty,
		PowAlgorithm:  cfg.Algorithm(),
		PowTTL:        cfg.PowTTL,
		SessionTTL:    cfg.SessionTTL,
	}, db, client, inspector, logger)

	queue, err := NewQueueManager(cfg, db, logger)
	if err != nil {
		db.Close()
		client.Close()
		return nil, err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	return &Service{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		client:     client,
		httpServer: httpServer,
		queue:      queue,
		sigCh:      sigCh,
	}, nil
}

// Run starts the HTTP server and task worker and blocks until a shutdown
// signal or a fatal component error.
func (s *Service) Run() error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("gateway listening", zap.String("addr", s.cfg.ListenAddr))
		errCh <- s.httpServer.Start()
	}()
	go func() {
		errCh <- s.queue.Run()
	}()

	var runErr error
	select {
	case sig := <-s.sigCh:
		s.logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			s.logger.Error("component failed", zap.Error(err))
			runErr = err
		}
	}

	s.shutdown()
	return runErr
}

func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown failed", zap.Error(err))
	}
	s.queue.Shutdown()
	if err := s.client.Close(); err != nil {
		s.logger.Warn("queue client close failed", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("store close failed", zap.Error(err))
	}
	s.logger.Info("gateway stopped")
}
