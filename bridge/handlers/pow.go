package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/pow"
)

// ChallengeResponse is the issued proof-of-work challenge.
type ChallengeResponse struct {
	Challenge  string `json:"challenge"`
	Difficulty int    `json:"difficulty"`
	Algorithm  string `json:"algorithm"`
	ExpiresSec int64  `json:"expires_sec"`
}

// Challenger issues proof-of-work challenges and validates proof tokens on
// protected routes. A proof is single-use: replaying a spent token is
// treated the same as an expired one, so the client's refresh path handles
// both.
type Challenger struct {
	difficulty int
	algorithm  pow.Algorithm
	ttl        time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu     sync.Mutex
	issued map[string]time.Time // challenge -> expiry
	spent  map[string]time.Time // proof token -> expiry
}

// NewChallenger creates a challenge issuer.
func NewChallenger(difficulty int, algorithm pow.Algorithm, ttl time.Duration, logger *zap.Logger) *Challenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Challenger{
		difficulty: difficulty,
		algorithm:  algorithm,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
		issued:     make(map[string]time.Time),
		spent:      make(map[string]time.Time),
	}
}

// ChallengeHandler issues a fresh challenge.
func (p *Challenger) ChallengeHandler(c echo.Context) error {
	challenge, err := pow.NewChallengeID()
	if err != nil {
		return writeError(c, err)
	}

	now := p.now()
	p.mu.Lock()
	p.issued[challenge] = now.Add(p.ttl)
	p.sweepLocked(now)
	p.mu.Unlock()

	return c.JSON(http.StatusOK, ChallengeResponse{
		Challenge:  challenge,
		Difficulty: p.difficulty,
		Algorithm:  string(p.algorithm),
		ExpiresSec: int64(p.ttl / time.Second),
	})
}

// Middleware enforces a valid, unspent proof token on the wrapped routes.
func (p *Challenger) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(pow.ProofHeader)
		if token == "" {
			return writeError(c, pow.ErrStaleProof.Wrap("missing proof"))
		}
		if err := p.consume(token); err != nil {
			return writeError(c, err)
		}
		return next(c)
	}
}

// consume validates a proof token and marks it spent.
func (p *Challenger) consume(token string) error {
	challenge, nonce, err := pow.ParseToken(token)
	if err != nil {
		return err
	}

	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	expiry, ok := p.issued[challenge]
	if !ok || now.After(expiry) {
		delete(p.issued, challenge)
		return pow.ErrStaleProof.Wrap("unknown or expired challenge")
	}
	if _, used := p.spent[token]; used {
		return pow.ErrStaleProof.Wrap("proof already spent")
	}
	if !pow.Verify(p.algorithm, challenge, nonce, p.difficulty) {
		return pow.ErrStaleProof.Wrap("insufficient difficulty")
	}

	p.spent[token] = expiry
	p.sweepLocked(now)
	return nil
}

// sweepLocked drops expired entries. Called under the mutex from the hot
// paths, so both maps stay bounded by the challenge TTL.
func (p *Challenger) sweepLocked(now time.Time) {
	for ch, exp := range p.issued {
		if now.After(exp) {
			delete(p.issued, ch)
		}
	}
	for token, exp := range p.spent {
		if now.After(exp) {
			delete(p.spent, token)
		}
	}
}
