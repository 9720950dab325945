// Package server wires configuration, storage, services and the HTTP
// transport together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/chirp/internal/logging"
	"github.com/dmitrijs2005/chirp/internal/server/auth"
	"github.com/dmitrijs2005/chirp/internal/server/config"
	"github.com/dmitrijs2005/chirp/internal/server/httpapi"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chirp/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const migrationTimeout = time.Minute

// openDB is a seam for tests.
var openDB = sql.Open

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	authService   *services.AuthService
	avatarService *services.AvatarService
	metrics       *httpapi.Metrics
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := OpenDB(c)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()

	signer, err := auth.NewSigner([]byte(c.SecretKey), c.TokenIssuer, c.TokenAudience)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("token signer: %w", err)
	}

	as, err := services.NewAuthService(db, rm, signer, logger.With("module", "auth_service"), c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	av := services.NewAvatarService(db, rm, c, logger.With("module", "avatar_service"))

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		repomanager:   rm,
		authService:   as,
		avatarService: av,
		metrics:       httpapi.NewMetrics(),
	}, nil
}

// OpenDB opens the pgx-backed pool described by the config. No connection is
// made until first use.
func OpenDB(c *config.Config) (*sql.DB, error) {
	db, err := openDB("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) migrate(ctx context.Context) error {
	mctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	if err := app.repomanager.RunMigrations(mctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.authService, app.avatarService, app.db, app.metrics)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return err
	}
	return nil
}

// Run migrates the schema, serves HTTP until ctx is cancelled or a signal
// arrives, then closes the pool.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "closing db", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")

	if err := app.migrate(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}

	app.initSignalHandler(cancelFunc)

	var (
		wg      sync.WaitGroup
		httpErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		httpErr = app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	return httpErr
}
