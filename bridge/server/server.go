// Package server wires the gateway's HTTP surface: proof-of-work
// admission, signature login, relay dispatch, directory, and the event
// stream.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/bridge/handlers"
	"github.com/Vibecoders-Team/dfsp-sub000/bridge/tasks"
	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
	"github.com/Vibecoders-Team/dfsp-sub000/pow"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
)

// Config is the HTTP server's slice of the gateway configuration.
type Config struct {
	ListenAddr    string
	SecretKey     []byte
	ChainID       int64
	LedgerAddress common.Address
	PowDifficulty int
	PowAlgorithm  pow.Algorithm
	PowTTL        time.Duration
	SessionTTL    time.Duration
}

// Server is the assembled gateway.
type Server struct {
	cfg    *Config
	echo   *echo.Echo
	logger *zap.Logger

	db        *badger.DB
	keeper    *ledger.Keeper
	forwarder *relay.Forwarder

	challenger *handlers.Challenger
	auth       *handlers.AuthHandlers
	relayH     *handlers.RelayHandlers
	directory  *handlers.DirectoryHandlers
	health     *handlers.HealthChecker
	events     *handlers.ConnectionManager
	upgrader   *websocket.Upgrader

	queue *asynq.Client
}

// New assembles a server over an opened badger database. The keeper's event
// sink fans out to websocket subscribers and the audit queue. The queue
// client and inspector may be nil in tests.
func New(cfg *Config, db *badger.DB, queue *asynq.Client, inspector *asynq.Inspector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		echo:   echo.New(),
		logger: logger,
		db:     db,
		events: handlers.NewConnectionManager(logger),
		queue:  queue,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.keeper = ledger.NewKeeper(
		ledger.NewBadgerStore(db),
		ledger.WithLogger(logger),
		ledger.WithEvents(s.dispatchEvent),
	)

	domain := relay.DefaultDomain(cfg.ChainID, cfg.LedgerAddress)
	s.forwarder = relay.NewForwarder(
		domain,
		relay.NewBadgerNonceStore(db),
		relay.WithForwarderLogger(logger),
	)
	s.forwarder.RegisterTarget(cfg.LedgerAddress, relay.NewLedgerTarget(s.keeper))

	s.challenger = handlers.NewChallenger(cfg.PowDifficulty, cfg.PowAlgorithm, cfg.PowTTL, logger)
	s.auth = handlers.NewAuthHandlers(domain, cfg.SecretKey, cfg.SessionTTL, logger)
	s.relayH = handlers.NewRelayHandlers(s.forwarder, s.keeper, logger)
	s.directory = handlers.NewDirectoryHandlers(db, logger)
	s.health = handlers.NewHealthChecker(db, inspector)

	s.setup()
	return s
}

// dispatchEvent is the keeper's sink: broadcast live, audit async. Enqueue
// failures are logged and dropped; the ledger write already committed.
func (s *Server) dispatchEvent(e ledger.Event) {
	s.events.Broadcast(e)

	if s.queue == nil {
		return
	}
	task, err := tasks.NewEventAuditTask(e)
	if err != nil {
		s.logger.Warn("failed to build audit task", zap.Error(err))
		return
	}
	if _, err := s.queue.Enqueue(task); err != nil {
		s.logger.Warn("failed to enqueue audit task", zap.Error(err))
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Keeper exposes the ledger keeper for tests.
func (s *Server) Keeper() *ledger.Keeper {
	return s.keeper
}

// Forwarder exposes the relay forwarder for tests.
func (s *Server) Forwarder() *relay.Forwarder {
	return s.forwarder
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	return s.echo.Start(s.cfg.ListenAddr)
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setup() {
	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Public probes.
	s.echo.GET("/health", s.health.LivenessHandler)
	s.echo.GET("/ready", s.health.ReadinessHandler)

	v1 := s.echo.Group("/v1")

	// Challenge issuance stays open; everything that costs the server work
	// sits behind the proof gate.
	v1.GET("/pow/challenge", s.challenger.ChallengeHandler)

	gated := v1.Group("", s.challenger.Middleware)
	gated.POST("/auth/challenge", s.auth.ChallengeHandler)
	gated.POST("/auth/login", s.auth.LoginHandler)

	// Reads are cheap and unauthenticated.
	v1.GET("/relay/nonce/:address", s.relayH.NonceHandler)
	v1.GET("/ledger/can-download", s.relayH.CanDownloadHandler)
	v1.GET("/ledger/grants/:capid", s.relayH.GrantHandler)
	v1.GET("/directory/:address", s.directory.LookupHandler)
	v1.GET("/events", handlers.EventsHandler(s.upgrader, s.events))

	// Mutations need a session and a fresh proof.
	jwtConfig := echojwt.Config{
		SigningKey:    s.cfg.SecretKey,
		SigningMethod: "HS256",
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(handlers.SessionClaims)
		},
	}
	protected := v1.Group("", echojwt.WithConfig(jwtConfig), s.challenger.Middleware)
	protected.POST("/relay", s.relayH.ExecuteHandler)
	protected.POST("/directory", s.directory.PublishHandler)
}
