package vault

import (
	"encoding/base64"
	"encoding/json"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/aead"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/argon2"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/salt"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/secure"
)

// KeystoreVersion is the current on-disk envelope version. Restore rejects
// anything else rather than guessing a layout.
const KeystoreVersion = 1

const cipherAlgorithm = "aes-256-gcm"

// keystoreAAD binds ciphertexts to this envelope version.
var keystoreAAD = []byte("dfsp-keystore-v1")

type kdfParams struct {
	Algorithm   string `json:"algorithm"`
	Iterations  uint32 `json:"iterations"`
	Memory      uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	Hash        string `json:"hash"`
	Salt        string `json:"salt"`
}

type cipherParams struct {
	Algorithm  string `json:"algorithm"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

type keystoreEnvelope struct {
	Version int          `json:"version"`
	KDF     kdfParams    `json:"kdf"`
	Cipher  cipherParams `json:"cipher"`
}

type keystorePayload struct {
	SigningPrivateKey    string `json:"signing_private_key"`
	EncryptionPrivateKey string `json:"encryption_private_key"`
	CreatedAt            int64  `json:"created_at"`
}

// sealKeystore encrypts an identity under a vault secret.
func sealKeystore(secret []byte, id *keys.Identity, createdAt int64, cfg *argon2.Config) ([]byte, error) {
	kdf := argon2.New(cfg)
	kdfSalt, err := kdf.GenerateSalt()
	if err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to generate salt: %v", err)
	}

	payload, err := json.Marshal(keystorePayload{
		SigningPrivateKey:    base64.StdEncoding.EncodeToString(id.SigningKeyBytes()),
		EncryptionPrivateKey: base64.StdEncoding.EncodeToString(id.EncryptionKeyBytes()),
		CreatedAt:            createdAt,
	})
	if err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to encode payload: %v", err)
	}
	defer secure.Zeroize(payload)

	derived := kdf.DeriveKey(secret, kdfSalt)
	defer secure.Zeroize(derived)

	cipher, err := aead.New(derived)
	if err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to initialize cipher: %v", err)
	}
	iv, ciphertext, err := cipher.Seal(payload, keystoreAAD)
	if err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to seal payload: %v", err)
	}

	envelope := keystoreEnvelope{
		Version: KeystoreVersion,
		KDF: kdfParams{
			Algorithm:   argon2.Algorithm,
			Iterations:  kdf.Config().Time,
			Memory:      kdf.Config().Memory,
			Parallelism: kdf.Config().Parallelism,
			Hash:        "blake2b",
			Salt:        base64.StdEncoding.EncodeToString(kdfSalt.Bytes()),
		},
		Cipher: cipherParams{
			Algorithm:  cipherAlgorithm,
			IV:         base64.StdEncoding.EncodeToString(iv),
			Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		},
	}
	return json.MarshalIndent(envelope, "", "  ")
}

// parseEnvelope decodes and structurally validates a keystore envelope
// without attempting decryption.
func parseEnvelope(data []byte) (*keystoreEnvelope, error) {
	var envelope keystoreEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to parse envelope: %v", err)
	}
	if envelope.Version != KeystoreVersion {
		return nil, ErrUnknownVersion.Wrapf("version %d", envelope.Version)
	}
	if envelope.KDF.Algorithm != argon2.Algorithm {
		return nil, ErrCorruptKeystore.Wrapf("unsupported kdf algorithm %q", envelope.KDF.Algorithm)
	}
	if envelope.Cipher.Algorithm != cipherAlgorithm {
		return nil, ErrCorruptKeystore.Wrapf("unsupported cipher algorithm %q", envelope.Cipher.Algorithm)
	}
	return &envelope, nil
}

// openKeystore decrypts a keystore envelope with the given secret. A wrong
// secret surfaces as ErrWrongSecret via the authentication tag check, never
// as garbage key material.
func openKeystore(secret, data []byte) (*keys.Identity, int64, error) {
	envelope, err := parseEnvelope(data)
	if err != nil {
		return nil, 0, err
	}

	kdfSaltRaw, err := base64.StdEncoding.DecodeString(envelope.KDF.Salt)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to decode salt: %v", err)
	}
	kdfSalt, err := salt.FromBytes(kdfSaltRaw)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("invalid salt: %v", err)
	}
	iv, err := base64.StdEncoding.DecodeString(envelope.Cipher.IV)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to decode iv: %v", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Cipher.Ciphertext)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to decode ciphertext: %v", err)
	}

	kdf := argon2.New(&argon2.Config{
		Time:        envelope.KDF.Iterations,
		Memory:      envelope.KDF.Memory,
		Parallelism: envelope.KDF.Parallelism,
		SaltLength:  uint32(len(kdfSaltRaw)),
		KeyLength:   aead.KeySize,
	})
	derived := kdf.DeriveKey(secret, kdfSalt)
	defer secure.Zeroize(derived)

	cipher, err := aead.New(derived)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to initialize cipher: %v", err)
	}
	plaintext, err := cipher.Open(iv, ciphertext, keystoreAAD)
	if err != nil {
		return nil, 0, ErrWrongSecret.Wrap(err.Error())
	}
	defer secure.Zeroize(plaintext)

	var payload keystorePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to parse payload: %v", err)
	}

	signingKey, err := base64.StdEncoding.DecodeString(payload.SigningPrivateKey)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to decode signing key: %v", err)
	}
	defer secure.Zeroize(signingKey)
	encryptionKey, err := base64.StdEncoding.DecodeString(payload.EncryptionPrivateKey)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("failed to decode encryption key: %v", err)
	}
	defer secure.Zeroize(encryptionKey)

	id, err := keys.FromMaterial(signingKey, encryptionKey)
	if err != nil {
		return nil, 0, ErrCorruptKeystore.Wrapf("invalid key material: %v", err)
	}
	return id, payload.CreatedAt, nil
}
