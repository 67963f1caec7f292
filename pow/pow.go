// Package pow implements the proof-of-work gate used to throttle abusive
// request volume: a brute-force nonce search over hash(challenge ‖ nonce)
// until the digest carries the required number of leading zero bits.
package pow

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"cosmossdk.io/errors"
	"github.com/mr-tron/base58"
	"lukechampine.com/blake3"
)

// Codespace for proof-of-work error conditions.
const Codespace = "pow"

var (
	ErrTimeout       = errors.Register(Codespace, 1, "proof-of-work search timed out")
	ErrBadDifficulty = errors.Register(Codespace, 2, "difficulty out of range")
	ErrBadToken      = errors.Register(Codespace, 3, "malformed proof token")
	ErrStaleProof    = errors.Register(Codespace, 4, "proof token is stale or invalid")
)

// Algorithm names a supported challenge hash. The issuing server selects it.
type Algorithm string

const (
	AlgSHA256 Algorithm = "sha256"
	AlgBlake3 Algorithm = "blake3"
)

// Valid reports whether the algorithm is supported.
func (a Algorithm) Valid() bool {
	return a == AlgSHA256 || a == AlgBlake3
}

// Digest hashes challenge ‖ decimal-nonce under the given algorithm.
func Digest(alg Algorithm, challenge string, nonce uint64) [32]byte {
	msg := make([]byte, 0, len(challenge)+20)
	msg = append(msg, challenge...)
	msg = strconv.AppendUint(msg, nonce, 10)

	if alg == AlgBlake3 {
		return blake3.Sum256(msg)
	}
	return sha256.Sum256(msg)
}

// LeadingZeroBits counts the leading zero bits of a digest.
func LeadingZeroBits(digest [32]byte) int {
	total := 0
	for _, b := range digest {
		if b == 0 {
			total += 8
			continue
		}
		total += bits.LeadingZeros8(b)
		break
	}
	return total
}

// Verify reports whether (challenge, nonce) meets the difficulty.
func Verify(alg Algorithm, challenge string, nonce uint64, difficulty int) bool {
	if difficulty <= 0 || difficulty > 256 {
		return false
	}
	return LeadingZeroBits(Digest(alg, challenge, nonce)) >= difficulty
}

// Solution is a satisfying (challenge, nonce) pair. Its token form is an
// opaque proof attached to protected requests until the server-communicated
// expiry.
type Solution struct {
	Challenge string
	Nonce     uint64
	Algorithm Algorithm
}

// ProofHeader is the HTTP header carrying the proof token.
const ProofHeader = "X-Pow-Proof"

// Token formats the solution as "<challenge>.<nonce>".
func (s *Solution) Token() string {
	return s.Challenge + "." + strconv.FormatUint(s.Nonce, 10)
}

// ParseToken splits a "<challenge>.<nonce>" proof token. The challenge part
// may itself contain dots; the nonce is everything after the last one.
func ParseToken(token string) (string, uint64, error) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return "", 0, ErrBadToken.Wrap(token)
	}
	nonce, err := strconv.ParseUint(token[idx+1:], 10, 64)
	if err != nil {
		return "", 0, ErrBadToken.Wrapf("invalid nonce: %v", err)
	}
	return token[:idx], nonce, nil
}

// NewChallengeID generates a random base58 challenge string for servers and
// tests that issue their own challenges.
func NewChallengeID() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return base58.Encode(raw), nil
}
