package bridge

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/bridge/tasks"
)

// QueueManager owns the asynq worker side: it consumes the background jobs
// the HTTP handlers enqueue.
type QueueManager struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	audit  *tasks.EventAuditProcessor
	logger *zap.Logger
}

// NewQueueManager builds the worker server and registers task handlers.
func NewQueueManager(cfg *Config, db *badger.DB, logger *zap.Logger) (*QueueManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	audit, err := tasks.NewEventAuditProcessor(db, logger)
	if err != nil {
		return nil, err
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		cfg.AsynqConfig(),
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeEventAudit, audit)

	return &QueueManager{server: srv, mux: mux, audit: audit, logger: logger}, nil
}

// Run starts the worker loop and blocks until shutdown.
func (qm *QueueManager) Run() error {
	qm.logger.Info("starting task worker")
	return qm.server.Run(qm.mux)
}

// Shutdown stops the worker and releases task resources.
func (qm *QueueManager) Shutdown() {
	qm.server.Shutdown()
	if err := qm.audit.Close(); err != nil {
		qm.logger.Warn("failed to close audit processor", zap.Error(err))
	}
}
