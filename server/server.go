// Package server exposes the session grant encoders over HTTP for callers that
// cannot link the Go module: typed data for wallets, redemption calls for relayers
// and hint resolution.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	session "github.com/sessionkeys/starknet-session/go"
)

const shutdownTimeout = 10 * time.Second

// Server serves the session HTTP API
type Server struct {
	router         *gin.Engine
	logger         *zap.Logger
	defaultVersion session.ProtocolVersion
	encoder        *session.Encoder
	schemas        *requestSchemas
	mcp            *mcpsdk.Server
}

// Option configures the server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultVersion sets the protocol version used when a request omits one
func WithDefaultVersion(version session.ProtocolVersion) Option {
	return func(s *Server) {
		s.defaultVersion = version
	}
}

// WithEncoder sets the calldata encoder used for redemption calls
func WithEncoder(encoder *session.Encoder) Option {
	return func(s *Server) {
		if encoder != nil {
			s.encoder = encoder
		}
	}
}

// New creates a server with its routes registered
func New(opts ...Option) (*Server, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:         zap.NewNop(),
		defaultVersion: session.V2,
		encoder:        session.NewEncoder(),
		schemas:        schemas,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := session.ParseProtocolVersion(string(s.defaultVersion)); err != nil {
		return nil, err
	}

	s.mcp = s.newMCPServer()
	s.router = gin.New()
	s.router.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	v1.POST("/typed-data/:flow", s.handleTypedData)
	v1.POST("/redemptions/:flow", s.handleRedemption)
	v1.POST("/hints", s.handleHints)

	sse := gin.WrapH(mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcp
	}, nil))
	s.router.GET("/mcp/sse", sse)
	s.router.POST("/mcp/sse", sse)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sessiond listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("sessiond shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
