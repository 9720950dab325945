package authctl

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/dmitrijs2005/chirp/internal/logging"
	"github.com/dmitrijs2005/chirp/internal/netx"
	"github.com/dmitrijs2005/chirp/internal/server"
	"github.com/dmitrijs2005/chirp/internal/server/auth"
	"github.com/dmitrijs2005/chirp/internal/server/config"
	"github.com/dmitrijs2005/chirp/internal/server/models"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chirp/internal/server/services"
)

const uploadTimeout = 30 * time.Second

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage")

const usage = `usage: authctl [-c config.json] [-d dsn] <command> [flags]

commands:
  migrate                                  apply database migrations
  create-account -u NAME -e EMAIL [-n DN]  create an account (password read from the terminal)
  revoke-sessions -u NAME                  revoke every refresh credential of an account
  delete-account -u NAME                   delete an account and its follow edges
  prune -older-than DURATION               delete refresh credentials expired or revoked before now-DURATION
  set-avatar -u NAME -f FILE               upload an avatar image for an account
`

type accountAdmin interface {
	CreateAccount(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	RevokeSessions(ctx context.Context, accountID string) (int64, error)
	DeleteAccount(ctx context.Context, accountID string) error
	FollowEdgeCount(ctx context.Context, accountID string) (int64, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type avatarRequester interface {
	RequestUpload(ctx context.Context, accountID string) (*services.AvatarUpload, error)
}

// maxAvatarBytes caps set-avatar input.
const maxAvatarBytes = 5 << 20

var errAvatarTooLarge = errors.New("avatar file too large")

type App struct {
	admin   accountAdmin
	avatars avatarRequester
	migrate func(ctx context.Context) error
	upload  func(ctx context.Context, url string, body []byte) error
	out     io.Writer
	now     func() time.Time
	close   func() error
}

// NewApp opens the database described by cfg and builds the services the
// commands need.
func NewApp(cfg *config.Config, out io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel).With("module", "authctl")

	db, err := server.OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()

	signer, err := auth.NewSigner([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.TokenAudience)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc, err := services.NewAuthService(db, rm, signer, logger, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	avatars := services.NewAvatarService(db, rm, cfg, logger)
	client := &http.Client{Timeout: uploadTimeout}

	return &App{
		admin:   svc,
		avatars: avatars,
		migrate: migrateFunc(rm, db),
		upload: func(ctx context.Context, url string, body []byte) error {
			return netx.UploadToPresignedURL(ctx, client, url, body)
		},
		out:   out,
		now:   time.Now,
		close: db.Close,
	}, nil
}

func migrateFunc(rm repomanager.RepositoryManager, db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rm.RunMigrations(ctx, db)
	}
}

func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Run executes one command. args starts with the command name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "migrate":
		return a.runMigrate(ctx)
	case "create-account":
		return a.createAccount(ctx, rest)
	case "revoke-sessions":
		return a.revokeSessions(ctx, rest)
	case "delete-account":
		return a.deleteAccount(ctx, rest)
	case "prune":
		return a.prune(ctx, rest)
	case "set-avatar":
		return a.setAvatar(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command: %s\n\n%s", cmd, usage)
		return ErrUsage
	}
}

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) runMigrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(a.out, "migrations applied")
	return nil
}

func (a *App) createAccount(ctx context.Context, args []string) error {
	fs := a.newFlagSet("create-account")
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	displayName := fs.String("n", "", "display name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *username == "" || *email == "" {
		fmt.Fprintln(a.out, "create-account requires -u and -e")
		return ErrUsage
	}

	pw, err := GetNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	acc, err := a.admin.CreateAccount(ctx, services.RegisterInput{
		Username:    *username,
		Email:       *email,
		Password:    string(pw),
		DisplayName: *displayName,
	})
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(a.out, "created account %s (%s)\n", acc.ID, acc.Username)
	return nil
}

func (a *App) revokeSessions(ctx context.Context, args []string) error {
	acc, err := a.lookup(ctx, "revoke-sessions", args)
	if err != nil {
		return err
	}

	n, err := a.admin.RevokeSessions(ctx, acc.ID)
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(a.out, "revoked %d session(s) for %s\n", n, acc.Username)
	return nil
}

func (a *App) deleteAccount(ctx context.Context, args []string) error {
	acc, err := a.lookup(ctx, "delete-account", args)
	if err != nil {
		return err
	}

	edges, err := a.admin.FollowEdgeCount(ctx, acc.ID)
	if err != nil {
		return describe(err)
	}
	if edges > 0 {
		fmt.Fprintf(a.out, "removing %d follow edge(s)\n", edges)
	}

	if err := a.admin.DeleteAccount(ctx, acc.ID); err != nil {
		return describe(err)
	}

	fmt.Fprintf(a.out, "deleted account %s (%s)\n", acc.ID, acc.Username)
	return nil
}

func (a *App) prune(ctx context.Context, args []string) error {
	fs := a.newFlagSet("prune")
	olderThan := fs.Duration("older-than", 0, "age of expired or revoked credentials to delete, e.g. 720h")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *olderThan <= 0 {
		fmt.Fprintln(a.out, "prune requires a positive -older-than")
		return ErrUsage
	}

	n, err := a.admin.Prune(ctx, a.now().Add(-*olderThan))
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(a.out, "pruned %d refresh token(s)\n", n)
	return nil
}

func (a *App) setAvatar(ctx context.Context, args []string) error {
	fs := a.newFlagSet("set-avatar")
	username := fs.String("u", "", "username")
	path := fs.String("f", "", "image file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *username == "" || *path == "" {
		fmt.Fprintln(a.out, "set-avatar requires -u and -f")
		return ErrUsage
	}

	body, err := readLimited(*path, maxAvatarBytes)
	if err != nil {
		return err
	}

	acc, err := a.admin.AccountByUsername(ctx, *username)
	if err != nil {
		return describe(err)
	}

	up, err := a.avatars.RequestUpload(ctx, acc.ID)
	if err != nil {
		return describe(err)
	}
	if err := a.upload(ctx, up.UploadURL, body); err != nil {
		return fmt.Errorf("upload avatar: %w", err)
	}

	fmt.Fprintf(a.out, "avatar for %s: %s\n", acc.Username, up.AvatarURL)
	return nil
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errAvatarTooLarge
	}
	return body, nil
}

// lookup parses -u and resolves it to an account.
func (a *App) lookup(ctx context.Context, name string, args []string) (*models.Account, error) {
	fs := a.newFlagSet(name)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *username == "" {
		fmt.Fprintf(a.out, "%s requires -u\n", name)
		return nil, ErrUsage
	}

	acc, err := a.admin.AccountByUsername(ctx, *username)
	if err != nil {
		return nil, describe(err)
	}
	return acc, nil
}

// describe turns service errors into operator-facing messages, keeping the
// original error matchable.
func describe(err error) error {
	var dup *common.DuplicateIdentityError
	switch {
	case errors.As(err, &dup):
		return fmt.Errorf("%s is already in use: %w", dup.Field, err)
	case errors.Is(err, common.ErrAccountNotFound):
		return fmt.Errorf("no such account: %w", err)
	default:
		return err
	}
}

// SplitArgs separates the global flags that precede the command from the
// command and its own flags. Every global flag takes a value.
func SplitArgs(args []string) (global, command []string) {
	i := 0
	for i < len(args) {
		a := args[i]
		if !strings.HasPrefix(a, "-") || a == "-" {
			break
		}
		if a == "--" {
			return args[:i], args[i+1:]
		}
		if strings.Contains(a, "=") {
			i++
		} else {
			i += 2
		}
	}
	if i > len(args) {
		i = len(args)
	}
	return args[:i], args[i:]
}
