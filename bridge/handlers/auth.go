package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/pow"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
)

// SessionClaims are the JWT claims of an authenticated session. Subject is
// the signer's hex address.
type SessionClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// AuthChallengeRequest asks for a login challenge.
type AuthChallengeRequest struct {
	Address string `json:"address"`
}

// AuthChallengeResponse is the typed-data login challenge to sign.
type AuthChallengeResponse struct {
	Address  string `json:"address"`
	Nonce    string `json:"nonce"`
	IssuedAt uint64 `json:"issued_at"`
}

// LoginRequest carries the signed login challenge.
type LoginRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	IssuedAt  uint64 `json:"issued_at"`
	Signature string `json:"signature"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// AuthHandlers implements signature-based login: the gateway issues a
// one-time challenge, the client signs it with its vault identity, and a
// verified signature exchanges for a bearer session token.
type AuthHandlers struct {
	domain     relay.Domain
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu         sync.Mutex
	challenges map[common.Address]AuthChallengeResponse
}

// NewAuthHandlers creates the login handlers.
func NewAuthHandlers(domain relay.Domain, secret []byte, sessionTTL time.Duration, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		domain:     domain,
		secret:     secret,
		sessionTTL: sessionTTL,
		now:        time.Now,
		logger:     logger,
		challenges: make(map[common.Address]AuthChallengeResponse),
	}
}

// ChallengeHandler issues a one-time login challenge for an address. A new
// request replaces any outstanding challenge for the same address.
func (a *AuthHandlers) ChallengeHandler(c echo.Context) error {
	var req AuthChallengeRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid JSON payload"))
	}
	if !common.IsHexAddress(req.Address) {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid address"))
	}
	addr := common.HexToAddress(req.Address)

	nonce, err := pow.NewChallengeID()
	if err != nil {
		return writeError(c, err)
	}
	challenge := AuthChallengeResponse{
		Address:  addr.Hex(),
		Nonce:    nonce,
		IssuedAt: uint64(a.now().Unix()),
	}

	a.mu.Lock()
	a.challenges[addr] = challenge
	a.mu.Unlock()

	return c.JSON(http.StatusOK, challenge)
}

// LoginHandler verifies the signed challenge and issues a session token.
func (a *AuthHandlers) LoginHandler(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid JSON payload"))
	}
	if !common.IsHexAddress(req.Address) {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid address"))
	}
	addr := common.HexToAddress(req.Address)

	a.mu.Lock()
	issued, ok := a.challenges[addr]
	if ok {
		delete(a.challenges, addr)
	}
	a.mu.Unlock()

	if !ok || issued.Nonce != req.Nonce || issued.IssuedAt != req.IssuedAt {
		return writeError(c, relay.ErrInvalidSignature.Wrap("no matching challenge"))
	}

	signer, err := relay.RecoverLoginSigner(a.domain, &relay.LoginChallenge{
		Account:  addr,
		Nonce:    req.Nonce,
		IssuedAt: req.IssuedAt,
	}, common.FromHex(req.Signature))
	if err != nil {
		return writeError(c, err)
	}
	if signer != addr {
		return writeError(c, relay.ErrInvalidSignature.Wrap("signer mismatch"))
	}

	now := a.now()
	claims := &SessionClaims{
		Address: addr.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.sessionTTL)),
			Issuer:    "dfsp-gateway",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return writeError(c, err)
	}

	a.logger.Info("session issued", zap.String("address", addr.Hex()))
	return c.JSON(http.StatusOK, LoginResponse{Token: token})
}

// SessionAddress extracts the authenticated address from the JWT the
// middleware stored in the context.
func SessionAddress(c echo.Context) (common.Address, bool) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return common.Address{}, false
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !common.IsHexAddress(claims.Address) {
		return common.Address{}, false
	}
	return common.HexToAddress(claims.Address), true
}
