// Package tasks defines the background jobs the gateway runs off the
// request path.
package tasks

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
)

const (
	// TypeEventAudit appends a committed grant event to the audit log.
	TypeEventAudit = "ledger:event_audit"
)

const auditPrefix = "audit/"

// NewEventAuditTask wraps a grant event for the queue.
func NewEventAuditTask(e ledger.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return asynq.NewTask(TypeEventAudit, payload, asynq.Queue("low")), nil
}

// EventAuditProcessor persists grant events to an append-only audit log in
// badger, keyed by commit order.
type EventAuditProcessor struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *zap.Logger
}

// NewEventAuditProcessor creates the processor. The sequence should be
// released by Close on shutdown.
func NewEventAuditProcessor(db *badger.DB, logger *zap.Logger) (*EventAuditProcessor, error) {
	seq, err := db.GetSequence([]byte(auditPrefix+"seq"), 128)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit sequence: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventAuditProcessor{db: db, seq: seq, logger: logger}, nil
}

// Close releases the unused tail of the sequence.
func (p *EventAuditProcessor) Close() error {
	return p.seq.Release()
}

// ProcessTask implements asynq.Handler.
func (p *EventAuditProcessor) ProcessTask(_ context.Context, t *asynq.Task) error {
	var e ledger.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	n, err := p.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate audit index: %w", err)
	}
	key := make([]byte, len(auditPrefix)+8)
	copy(key, auditPrefix)
	binary.BigEndian.PutUint64(key[len(auditPrefix):], n)

	err = p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, t.Payload())
	})
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	p.logger.Debug("audit entry written",
		zap.Uint64("index", n),
		zap.String("type", string(e.Type)),
		zap.String("cap_id", e.CapHex),
	)
	return nil
}
