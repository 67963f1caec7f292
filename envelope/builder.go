// Package envelope wraps per-file content keys for a set of recipients.
// Each file is encrypted once under a symmetric content key; the envelope
// carries that key sealed to every recipient's published encryption key, so
// adding a recipient never re-encrypts the content.
package envelope

import (
	"go.uber.org/zap"

	ecies "github.com/ecies/go/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/aead"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/secure"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// WrappedKey is the content key sealed to one recipient.
type WrappedKey struct {
	Recipient common.Address `json:"recipient"`
	Key       []byte         `json:"key"`
}

// Envelope is the completed share artifact: one sealed content key per
// recipient for a single file.
type Envelope struct {
	File       fileid.FileID `json:"file"`
	Recipients []WrappedKey  `json:"recipients"`
}

// Builder assembles envelopes from the local content key store and a peer
// directory.
type Builder struct {
	keys      *ContentKeyStore
	directory Directory
	logger    *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger attaches a structured logger.
func WithBuilderLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder.
func NewBuilder(store *ContentKeyStore, directory Directory, opts ...BuilderOption) *Builder {
	b := &Builder{keys: store, directory: directory, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Share starts an envelope build for the given recipients and runs it as
// far as it can go. If every recipient's key resolves, the returned
// operation is already complete. If a lookup fails with an unknown key the
// operation pauses at that recipient; the caller can fix the directory (or
// drop the recipient) and call Resume without losing the recipients already
// wrapped, and the content key stays the same across the pause.
func (b *Builder) Share(file fileid.FileID, recipients []common.Address) (*ShareOperation, error) {
	contentKey, err := b.keys.GetOrCreate(file)
	if err != nil {
		return nil, err
	}

	op := &ShareOperation{
		builder:    b,
		file:       file,
		contentKey: contentKey,
		pending:    append([]common.Address(nil), recipients...),
	}
	op.run()
	return op, nil
}

// ShareOperation is the explicit state of an in-progress envelope build. It
// is not safe for concurrent use.
type ShareOperation struct {
	builder    *Builder
	file       fileid.FileID
	contentKey []byte
	pending    []common.Address
	wrapped    []WrappedKey
	blocked    *common.Address
	lastErr    error
	done       bool
}

// run wraps pending recipients until the list is empty or a lookup blocks.
func (op *ShareOperation) run() {
	for len(op.pending) > 0 {
		recipient := op.pending[0]

		pub, err := op.builder.directory.LookupEncryptionKey(recipient)
		if err != nil {
			op.blocked = &recipient
			op.lastErr = err
			op.builder.logger.Debug("share paused on unresolved recipient",
				zap.String("file", op.file.Hex()),
				zap.String("recipient", recipient.Hex()),
			)
			return
		}

		sealed, err := ecies.Encrypt(pub, op.contentKey)
		if err != nil {
			op.blocked = &recipient
			op.lastErr = ErrWrapFailed.Wrapf("%s: %v", recipient.Hex(), err)
			return
		}

		op.wrapped = append(op.wrapped, WrappedKey{Recipient: recipient, Key: sealed})
		op.pending = op.pending[1:]
		op.blocked = nil
		op.lastErr = nil
	}
	op.done = true
}

// Blocked returns the recipient the operation is paused on, if any.
func (op *ShareOperation) Blocked() (common.Address, bool) {
	if op.blocked == nil {
		return common.Address{}, false
	}
	return *op.blocked, true
}

// Err returns the error that paused the operation, or nil when it is
// complete or has not yet hit one.
func (op *ShareOperation) Err() error {
	return op.lastErr
}

// Complete reports whether every recipient has been wrapped.
func (op *ShareOperation) Complete() bool {
	return op.done
}

// Resume retries from the blocking recipient with the same content key and
// the recipients wrapped so far intact.
func (op *ShareOperation) Resume() error {
	if op.done {
		return ErrOperationDone
	}
	if op.blocked == nil {
		return ErrNotBlocked
	}
	op.run()
	return op.lastErr
}

// Skip drops the blocking recipient and continues with the rest.
func (op *ShareOperation) Skip() error {
	if op.done {
		return ErrOperationDone
	}
	if op.blocked == nil {
		return ErrNotBlocked
	}
	op.pending = op.pending[1:]
	op.blocked = nil
	op.lastErr = nil
	op.run()
	return op.lastErr
}

// Envelope returns the finished artifact. It fails until the operation is
// complete.
func (op *ShareOperation) Envelope() (*Envelope, error) {
	if !op.done {
		if op.lastErr != nil {
			return nil, op.lastErr
		}
		return nil, ErrRecipientKeyUnknown.Wrap("operation incomplete")
	}
	return &Envelope{File: op.file, Recipients: op.wrapped}, nil
}

// Close zeroizes the operation's copy of the content key. Call it once the
// envelope has been extracted.
func (op *ShareOperation) Close() {
	secure.Zeroize(op.contentKey)
}

// UnwrapKey recovers the content key from an envelope with the recipient's
// own identity.
func UnwrapKey(env *Envelope, id *keys.Identity) ([]byte, error) {
	addr := id.Address()
	for _, w := range env.Recipients {
		if w.Recipient != addr {
			continue
		}
		key, err := id.Decrypt(w.Key)
		if err != nil {
			return nil, ErrUnwrapFailed.Wrapf("%s: %v", addr.Hex(), err)
		}
		return key, nil
	}
	return nil, ErrUnwrapFailed.Wrapf("%s is not a recipient", addr.Hex())
}

// SealContent encrypts file content under its content key. The file ID is
// bound as associated data so a sealed blob cannot be replayed for another
// file.
func SealContent(contentKey []byte, file fileid.FileID, plaintext []byte) ([]byte, error) {
	cipher, err := aead.New(contentKey)
	if err != nil {
		return nil, err
	}
	return cipher.SealCombined(plaintext, file.Bytes())
}

// OpenContent decrypts file content sealed by SealContent.
func OpenContent(contentKey []byte, file fileid.FileID, sealed []byte) ([]byte, error) {
	cipher, err := aead.New(contentKey)
	if err != nil {
		return nil, err
	}
	return cipher.OpenCombined(sealed, file.Bytes())
}
