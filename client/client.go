// Package client is the HTTP client for the relay gateway: it solves
// proof-of-work challenges, maintains a login session, and submits signed
// forward requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/pow"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
)

// DefaultRequestTimeout bounds a single gateway round trip.
const DefaultRequestTimeout = 10 * time.Second

// Wire shapes shared with the gateway handlers.
type (
	// ChallengeResponse is the proof-of-work challenge issued by the gateway.
	ChallengeResponse struct {
		Challenge  string `json:"challenge"`
		Difficulty int    `json:"difficulty"`
		Algorithm  string `json:"algorithm"`
		ExpiresSec int64  `json:"expires_sec"`
	}

	// AuthChallengeRequest asks the gateway for a login challenge.
	AuthChallengeRequest struct {
		Address string `json:"address"`
	}

	// AuthChallengeResponse is the challenge to sign for a session token.
	AuthChallengeResponse struct {
		Address  string `json:"address"`
		Nonce    string `json:"nonce"`
		IssuedAt uint64 `json:"issued_at"`
	}

	// LoginRequest carries the signed login challenge.
	LoginRequest struct {
		Address   string `json:"address"`
		Nonce     string `json:"nonce"`
		IssuedAt  uint64 `json:"issued_at"`
		Signature string `json:"signature"`
	}

	// LoginResponse carries the session token.
	LoginResponse struct {
		Token string `json:"token"`
	}

	// RelayRequest carries a signed forward request.
	RelayRequest struct {
		From      string `json:"from"`
		To        string `json:"to"`
		Value     string `json:"value"`
		Gas       uint64 `json:"gas"`
		Nonce     uint64 `json:"nonce"`
		Data      string `json:"data"`
		Signature string `json:"signature"`
	}

	// RelayResponse reports the sub-call outcome. Returndata is hex encoded;
	// when OK is false it decodes to a relay.Revert.
	RelayResponse struct {
		OK         bool   `json:"ok"`
		Returndata string `json:"returndata"`
	}

	// NonceResponse is the stored replay counter for a signer.
	NonceResponse struct {
		Nonce uint64 `json:"nonce"`
	}

	// ErrorResponse is the gateway's error body.
	ErrorResponse struct {
		Codespace string `json:"codespace"`
		Code      uint32 `json:"code"`
		Message   string `json:"message"`
	}
)

// Client talks to one gateway. It caches the current proof-of-work token
// and session token and refreshes both transparently.
type Client struct {
	base   string
	http   *http.Client
	signer *relay.Signer
	solver *pow.Solver
	logger *zap.Logger

	mu    sync.Mutex
	proof string
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSolver replaces the proof-of-work solver.
func WithSolver(s *pow.Solver) Option {
	return func(c *Client) { c.solver = s }
}

// WithClientLogger attaches a structured logger.
func WithClientLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the gateway at base, signing with the given
// signer.
func New(base string, signer *relay.Signer, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: DefaultRequestTimeout},
		signer: signer,
		solver: pow.NewSolver(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchChallenge retrieves a fresh proof-of-work challenge.
func (c *Client) FetchChallenge(ctx context.Context) (*ChallengeResponse, error) {
	var out ChallengeResponse
	if err := c.get(ctx, "/v1/pow/challenge", &out); err != nil {
		return nil, errors.Wrap(err, "fetch pow challenge")
	}
	return &out, nil
}

// refreshProof solves a fresh challenge and caches the proof token.
func (c *Client) refreshProof(ctx context.Context) error {
	ch, err := c.FetchChallenge(ctx)
	if err != nil {
		return err
	}
	alg := pow.Algorithm(ch.Algorithm)
	if !alg.Valid() {
		alg = pow.AlgSHA256
	}
	sol, err := c.solver.SolveWith(ctx, alg, ch.Challenge, ch.Difficulty)
	if err != nil {
		return errors.Wrap(err, "solve pow challenge")
	}

	c.mu.Lock()
	c.proof = sol.Token()
	c.mu.Unlock()
	return nil
}

// Login obtains a session token by signing the gateway's login challenge.
func (c *Client) Login(ctx context.Context) error {
	addr, err := c.signerAddress()
	if err != nil {
		return err
	}

	var ch AuthChallengeResponse
	err = c.post(ctx, "/v1/auth/challenge", AuthChallengeRequest{Address: addr.Hex()}, &ch)
	if err != nil {
		return errors.Wrap(err, "fetch login challenge")
	}

	sig, err := c.signer.SignLoginChallenge(&relay.LoginChallenge{
		Account:  addr,
		Nonce:    ch.Nonce,
		IssuedAt: ch.IssuedAt,
	})
	if err != nil {
		return errors.Wrap(err, "sign login challenge")
	}

	var out LoginResponse
	err = c.post(ctx, "/v1/auth/login", LoginRequest{
		Address:   addr.Hex(),
		Nonce:     ch.Nonce,
		IssuedAt:  ch.IssuedAt,
		Signature: "0x" + common.Bytes2Hex(sig),
	}, &out)
	if err != nil {
		return errors.Wrap(err, "login")
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return nil
}

// Nonce fetches the signer's current replay counter from the gateway.
func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	addr, err := c.signerAddress()
	if err != nil {
		return 0, err
	}
	var out NonceResponse
	if err := c.get(ctx, "/v1/relay/nonce/"+addr.Hex(), &out); err != nil {
		return 0, errors.Wrap(err, "fetch relay nonce")
	}
	return out.Nonce, nil
}

// Execute signs the payload as a forward request with a fresh nonce and
// submits it. On success it returns the sub-call's returndata; a sub-call
// revert surfaces as (*relay.Revert, nil returndata, nil error).
func (c *Client) Execute(ctx context.Context, to common.Address, data []byte) ([]byte, *relay.Revert, error) {
	addr, err := c.signerAddress()
	if err != nil {
		return nil, nil, err
	}
	nonce, err := c.Nonce(ctx)
	if err != nil {
		return nil, nil, err
	}

	req := &relay.ForwardRequest{
		From:  addr,
		To:    to,
		Value: big.NewInt(0),
		Gas:   relay.DefaultGasLimit,
		Nonce: nonce,
		Data:  data,
	}
	sig, err := c.signer.SignForwardRequest(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sign forward request")
	}

	var out RelayResponse
	err = c.post(ctx, "/v1/relay", RelayRequest{
		From:      req.From.Hex(),
		To:        req.To.Hex(),
		Value:     "0",
		Gas:       req.Gas,
		Nonce:     req.Nonce,
		Data:      "0x" + common.Bytes2Hex(req.Data),
		Signature: "0x" + common.Bytes2Hex(sig),
	}, &out)
	if err != nil {
		return nil, nil, errors.Wrap(err, "submit forward request")
	}

	returndata := common.FromHex(out.Returndata)
	if !out.OK {
		revert, decErr := relay.DecodeRevert(returndata)
		if decErr != nil {
			return nil, nil, errors.Wrap(decErr, "decode revert")
		}
		return nil, revert, nil
	}
	return returndata, nil, nil
}

// SignerAddress is the vault identity this client signs with.
func (c *Client) SignerAddress() (common.Address, error) {
	return c.signerAddress()
}

func (c *Client) signerAddress() (common.Address, error) {
	addr, err := c.signer.Address()
	if err != nil {
		return common.Address{}, errors.Wrap(err, "signer address")
	}
	return addr, nil
}

// get performs a GET with proof/session headers and stale-proof retry.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post performs a POST with proof/session headers and stale-proof retry.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request body")
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// do performs one request, retrying exactly once after refreshing the
// proof-of-work token when the gateway rejects the current one. Any other
// failure, including a second rejection, is terminal.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	retried := false
	for {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if !retried && isStaleProof(err) {
			retried = true
			c.logger.Debug("proof rejected, refreshing", zap.String("path", path))
			if refreshErr := c.refreshProof(ctx); refreshErr != nil {
				return refreshErr
			}
			continue
		}
		return err
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.proof != "" {
		req.Header.Set(pow.ProofHeader, c.proof)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "gateway request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= 400 {
		return newStatusError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

// StatusError is a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       ErrorResponse
}

func newStatusError(status int, payload []byte) *StatusError {
	e := &StatusError{StatusCode: status}
	// Best effort: the gateway sends structured errors, but proxies may not.
	if err := json.Unmarshal(payload, &e.Body); err != nil {
		e.Body.Message = strings.TrimSpace(string(payload))
	}
	return e
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body.Message)
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

// isStaleProof reports whether the failure means the proof-of-work token
// must be refreshed: an explicit stale-proof condition or a 429.
func isStaleProof(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return se.Body.Codespace == pow.Codespace && se.Body.Code == pow.ErrStaleProof.ABCICode()
}
