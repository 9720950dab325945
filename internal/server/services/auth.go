// Package services contains server-side business logic. AuthService owns the
// identity lifecycle: registration, login, token refresh, logout and account
// removal. AvatarService hands out presigned upload URLs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/dmitrijs2005/chirp/internal/dbx"
	"github.com/dmitrijs2005/chirp/internal/logging"
	"github.com/dmitrijs2005/chirp/internal/server/auth"
	"github.com/dmitrijs2005/chirp/internal/server/config"
	"github.com/dmitrijs2005/chirp/internal/server/models"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TokenTypeBearer is the token_type returned with every access token.
const TokenTypeBearer = "Bearer"

type RegisterInput struct {
	Username    string `validate:"required,min=3,max=50,username"`
	Email       string `validate:"required,max=254,email"`
	Password    string `validate:"required"`
	DisplayName string `validate:"max=100"`
}

type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// RefreshInput carries the (possibly expired) access token and, optionally,
// the refresh secret handed out with it.
type RefreshInput struct {
	AccessToken  string `validate:"required"`
	RefreshToken string
}

// AuthResult is returned by every successful register, login and refresh.
type AuthResult struct {
	AccessToken  string
	TokenType    string
	ExpiresAt    time.Time
	RefreshToken string
	User         *models.Account
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      *auth.Signer
	log         logging.Logger
	validate    *validator.Validate
	policy      auth.PasswordPolicy
	argon2      auth.Argon2Params

	accessTTL            time.Duration
	refreshTTL           time.Duration
	storeTimeout         time.Duration
	maxActiveSessions    int
	requireRefreshSecret bool

	// dummyHash is verified against when the username is unknown, so a miss
	// costs the same as a wrong password.
	dummyHash string
	now       func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, signer *auth.Signer, log logging.Logger, cfg *config.Config) (*AuthService, error) {
	dummy, err := auth.HashPassword(uuid.NewString(), cfg.Argon2)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		db:                   db,
		repomanager:          m,
		signer:               signer,
		log:                  log,
		validate:             newValidator(),
		policy:               auth.DefaultPasswordPolicy(),
		argon2:               cfg.Argon2,
		accessTTL:            cfg.AccessTokenValidityDuration,
		refreshTTL:           cfg.RefreshTokenValidityDuration,
		storeTimeout:         cfg.StoreTimeout,
		maxActiveSessions:    cfg.MaxActiveSessions,
		requireRefreshSecret: cfg.RequireRefreshSecret,
		dummyHash:            dummy,
		now:                  time.Now,
	}, nil
}

// Register creates an account and signs it in. Checks run in a fixed order:
// request shape, username uniqueness, email uniqueness, password policy.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	account, err := s.prepareAccount(ctx, in)
	if err != nil {
		return nil, err
	}

	var result *AuthResult
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Accounts(tx).Create(ctx, account)
		if err != nil {
			return err
		}
		result, err = s.issue(ctx, tx, created)
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "register", err)
	}

	s.log.Info(ctx, "account registered", "account_id", result.User.ID)
	return result, nil
}

// CreateAccount registers an account without signing it in.
func (s *AuthService) CreateAccount(ctx context.Context, in RegisterInput) (*models.Account, error) {
	account, err := s.prepareAccount(ctx, in)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	created, err := s.repomanager.Accounts(s.db).Create(sctx, account)
	if err != nil {
		return nil, s.classify(ctx, "create account", err)
	}
	s.log.Info(ctx, "account created", "account_id", created.ID)
	return created, nil
}

// prepareAccount runs the registration checks and returns the account to
// insert, password already hashed. Uniqueness is checked up front for a
// precise error; the unique indexes still decide concurrent races.
func (s *AuthService) prepareAccount(ctx context.Context, in RegisterInput) (*models.Account, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := s.ensureIdentityFree(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}
	if rules := s.policy.Check(in.Password); len(rules) > 0 {
		return nil, &common.WeakPasswordError{Rules: rules}
	}

	hash, err := auth.HashPassword(in.Password, s.argon2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}
	return &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}, nil
}

func (s *AuthService) ensureIdentityFree(ctx context.Context, username, email string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)

	_, err := repo.FindByUsername(sctx, username)
	switch {
	case err == nil:
		return &common.DuplicateIdentityError{Field: "username"}
	case !errors.Is(err, common.ErrorNotFound):
		return s.classify(ctx, "find by username", err)
	}

	_, err = repo.FindByEmail(sctx, email)
	switch {
	case err == nil:
		return &common.DuplicateIdentityError{Field: "email"}
	case !errors.Is(err, common.ErrorNotFound):
		return s.classify(ctx, "find by email", err)
	}
	return nil
}

// Login checks the credentials and signs the account in. An unknown username
// and a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	account, err := s.repomanager.Accounts(s.db).FindByUsername(sctx, in.Username)
	cancel()

	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = auth.VerifyPassword(in.Password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.classify(ctx, "login lookup", err)
	}

	ok, err := auth.VerifyPassword(in.Password, account.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "stored password hash is unreadable", "account_id", account.ID, "error", err)
		return nil, common.ErrorInternal
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	var result *AuthResult
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = s.issue(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "login issue", err)
	}
	return result, nil
}

// Refresh exchanges an access token, expired or not, for a new token pair.
// When refresh secrets are required, the presented secret must belong to an
// active ledger row of the same account; that row is revoked in the same
// transaction that records its replacement.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	if in.AccessToken == "" {
		return nil, common.ErrInvalidToken
	}

	claims, err := s.signer.Verify(in.AccessToken, auth.VerifyOptions{CheckExpiry: false})
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, common.ErrInvalidToken
	}

	sctx, cancel := s.storeCtx(ctx)
	account, err := s.repomanager.Accounts(s.db).FindByID(sctx, claims.Subject)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, s.classify(ctx, "refresh lookup", err)
	}

	if s.requireRefreshSecret && in.RefreshToken == "" {
		return nil, common.ErrInvalidToken
	}

	var result *AuthResult
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if s.requireRefreshSecret {
			if err := s.consumeRefreshSecret(ctx, tx, account.ID, in.RefreshToken); err != nil {
				return err
			}
		}
		var err error
		result, err = s.issue(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "refresh", err)
	}
	return result, nil
}

func (s *AuthService) consumeRefreshSecret(ctx context.Context, tx dbx.DBTX, accountID, secret string) error {
	repo := s.repomanager.RefreshTokens(tx)

	row, err := repo.FindByHash(ctx, auth.HashRefreshSecret(secret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return err
	}
	if row.AccountID != accountID || !row.Active(s.now()) {
		return common.ErrInvalidToken
	}

	revoked, err := repo.Revoke(ctx, row.ID)
	if err != nil {
		return err
	}
	if !revoked {
		// lost a race with a concurrent refresh or logout
		return common.ErrInvalidToken
	}
	return nil
}

// Logout revokes every refresh credential of the token's account. The header
// must read "Bearer <token>". Once the header shape is valid the call always
// succeeds: unverifiable tokens and revocation failures are only logged.
func (s *AuthService) Logout(ctx context.Context, authorizationHeader string) error {
	token, ok := BearerToken(authorizationHeader)
	if !ok {
		return common.ErrMalformedAuthHeader
	}

	claims, err := s.signer.Verify(token, auth.VerifyOptions{CheckExpiry: false})
	if err != nil {
		s.log.Debug(ctx, "logout with unverifiable token ignored", "reason", err.Error())
		return nil
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		s.log.Debug(ctx, "logout with malformed subject ignored")
		return nil
	}

	n, err := s.RevokeSessions(ctx, claims.Subject)
	if err != nil {
		s.log.Warn(ctx, "logout revocation failed", "account_id", claims.Subject, "error", err)
		return nil
	}
	s.log.Info(ctx, "logged out", "account_id", claims.Subject, "revoked", n)
	return nil
}

// RevokeSessions revokes every active refresh credential of the account.
func (s *AuthService) RevokeSessions(ctx context.Context, accountID string) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.repomanager.RefreshTokens(s.db).RevokeAllForAccount(sctx, accountID)
	if err != nil {
		return 0, s.classify(ctx, "revoke sessions", err)
	}
	return n, nil
}

// Authenticate verifies a bearer token for a protected route, expiry
// included.
func (s *AuthService) Authenticate(ctx context.Context, bearerToken string) (*auth.Claims, error) {
	claims, err := s.signer.Verify(bearerToken, auth.VerifyOptions{CheckExpiry: true})
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, accountID string) (*models.Account, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	account, err := s.repomanager.Accounts(s.db).FindByID(sctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, s.classify(ctx, "me", err)
	}
	return account, nil
}

// AccountByUsername looks an account up by its (case-insensitive) username.
func (s *AuthService) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	account, err := s.repomanager.Accounts(s.db).FindByUsername(sctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, s.classify(ctx, "account by username", err)
	}
	return account, nil
}

// DeleteAccount removes the account's follow edges in both directions and
// then the account itself in one transaction. Posts, likes and refresh
// credentials go with it.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	var edges int64
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		edges, err = s.repomanager.Social(tx).DeleteFollowEdges(ctx, accountID)
		if err != nil {
			return err
		}
		err = s.repomanager.Accounts(tx).Delete(ctx, accountID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		return err
	})
	if err != nil {
		return s.classify(ctx, "delete account", err)
	}

	s.log.Info(ctx, "account deleted", "account_id", accountID, "follow_edges", edges)
	return nil
}

// FollowEdgeCount reports how many follow edges touch the account in either
// direction.
func (s *AuthService) FollowEdgeCount(ctx context.Context, accountID string) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.repomanager.Social(s.db).CountFollowEdges(sctx, accountID)
	if err != nil {
		return 0, s.classify(ctx, "count follow edges", err)
	}
	return n, nil
}

// Prune deletes ledger rows that expired or were revoked before cutoff.
func (s *AuthService) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	// pruning may touch many rows; it runs under the caller's deadline only
	n, err := s.repomanager.RefreshTokens(s.db).DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, s.classify(ctx, "prune", err)
	}
	return n, nil
}

// issue signs an access token for account, records a fresh refresh
// credential and trims the account's active credentials to the session cap.
func (s *AuthService) issue(ctx context.Context, tx dbx.DBTX, account *models.Account) (*AuthResult, error) {
	access, expiresAt, err := s.signer.Issue(auth.AccountClaims{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
	}, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	secret, hash, err := auth.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	repo := s.repomanager.RefreshTokens(tx)
	if _, err := repo.Create(ctx, account.ID, hash, s.now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}
	if _, err := repo.RevokeExcess(ctx, account.ID, s.maxActiveSessions); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		TokenType:    TokenTypeBearer,
		ExpiresAt:    expiresAt,
		RefreshToken: secret,
		User:         account,
	}, nil
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *AuthService) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return dbx.WithTx(sctx, s.db, nil, fn)
}

// classify passes taxonomy errors through and turns anything else into
// ErrStoreUnavailable. The underlying cause is logged, never returned.
func (s *AuthService) classify(ctx context.Context, op string, err error) error {
	for _, known := range []error{
		common.ErrDuplicateIdentity,
		common.ErrInvalidToken,
		common.ErrAccountNotFound,
		common.ErrAccountHasFollowEdges,
		common.ErrorInternal,
		common.ErrValidationFailed,
		common.ErrWeakPassword,
		common.ErrStoreUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	s.log.Error(ctx, "store call failed", "op", op, "error", err)
	return common.ErrStoreUnavailable
}

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>". The scheme is matched case-sensitively.
func BearerToken(header string) (string, bool) {
	rest, ok := strings.CutPrefix(header, common.BearerScheme+" ")
	if !ok {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}
