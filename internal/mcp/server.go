package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/egress/internal/config"
	"github.com/nvandessel/egress/internal/logging"
	"github.com/nvandessel/egress/internal/ratelimit"
	"github.com/nvandessel/egress/internal/store"
)

// Server wraps the MCP SDK server and exposes egress runs as tools.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	root         string
	settings     *config.EgressConfig
	runTimeout   time.Duration
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "egress")
	Version string // Server version
	Root    string // Project root directory

	// Settings supplies defaults for tool inputs. Nil means config.Default().
	Settings *config.EgressConfig

	// RunTimeout bounds a single egress_run call. Zero means one minute.
	RunTimeout time.Duration

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// Store overrides the SQLite run store, mainly for tests.
	Store store.RunStore
}

// NewServer creates a new MCP server with egress tools.
func NewServer(cfg *Config) (*Server, error) {
	runStore := cfg.Store
	if runStore == nil {
		sqliteStore, err := store.NewSQLiteRunStore(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to create run store: %w", err)
		}
		runStore = sqliteStore
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        runStore,
		root:         cfg.Root,
		settings:     settings,
		runTimeout:   timeout,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(cfg.Root),
		logger:       logger,
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server listening on stdio", "root", s.root)
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	auditErr := s.auditLogger.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return auditErr
}
