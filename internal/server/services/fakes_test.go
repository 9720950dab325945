package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/dmitrijs2005/chirp/internal/dbx"
	"github.com/dmitrijs2005/chirp/internal/logging"
	"github.com/dmitrijs2005/chirp/internal/server/auth"
	"github.com/dmitrijs2005/chirp/internal/server/config"
	"github.com/dmitrijs2005/chirp/internal/server/models"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/social"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// fakeStore is an in-memory stand-in for the three repositories. It enforces
// the same uniqueness and referential rules as the schema.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	tokens   []*models.RefreshToken
	follows  []models.Follow
	seq      int

	// failures makes the named method return the given error.
	failures map[string]error
	// block makes every call wait for its context to end.
	block bool
	now   func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]*models.Account{},
		failures: map[string]error{},
		now:      time.Now,
	}
}

func (f *fakeStore) gate(ctx context.Context, method string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[method]
}

func (f *fakeStore) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

func (f *fakeStore) activeTokens(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.AccountID == accountID && t.Active(f.now()) {
			n++
		}
	}
	return n
}

func (f *fakeStore) tokenCount(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.AccountID == accountID {
			n++
		}
	}
	return n
}

// --- accounts.Repository ---

func (f *fakeStore) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if err := f.gate(ctx, "Create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.accounts {
		if strings.EqualFold(existing.Username, a.Username) {
			return nil, &common.DuplicateIdentityError{Field: "username"}
		}
		if strings.EqualFold(existing.Email, a.Email) {
			return nil, &common.DuplicateIdentityError{Field: "email"}
		}
	}

	stored := *a
	stored.ID = uuid.NewString()
	stored.CreatedAt = f.now()
	stored.UpdatedAt = stored.CreatedAt
	f.accounts[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (f *fakeStore) find(ctx context.Context, method string, match func(*models.Account) bool) (*models.Account, error) {
	if err := f.gate(ctx, method); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if match(a) {
			out := *a
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return f.find(ctx, "FindByUsername", func(a *models.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return f.find(ctx, "FindByEmail", func(a *models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return f.find(ctx, "FindByID", func(a *models.Account) bool { return a.ID == id })
}

func (f *fakeStore) UpdateAvatar(ctx context.Context, id string, avatarURL string) error {
	if err := f.gate(ctx, "UpdateAvatar"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.AvatarURL = avatarURL
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if err := f.gate(ctx, "Delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	for _, e := range f.follows {
		if e.FollowerID == id || e.FollowedID == id {
			return common.ErrAccountHasFollowEdges
		}
	}
	delete(f.accounts, id)

	kept := f.tokens[:0]
	for _, t := range f.tokens {
		if t.AccountID != id {
			kept = append(kept, t)
		}
	}
	f.tokens = kept
	return nil
}

// --- refreshtokens.Repository ---

type fakeTokens struct{ *fakeStore }

func (f fakeTokens) Create(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	if err := f.gate(ctx, "CreateRefreshToken"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &models.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: f.now().Add(time.Duration(f.seq)),
	}
	f.tokens = append(f.tokens, t)
	out := *t
	return &out, nil
}

func (f fakeTokens) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	if err := f.gate(ctx, "FindByHash"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == tokenHash {
			out := *t
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeTokens) Revoke(ctx context.Context, id string) (bool, error) {
	if err := f.gate(ctx, "Revoke"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == id && t.RevokedAt == nil {
			now := f.now()
			t.RevokedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f fakeTokens) RevokeAllForAccount(ctx context.Context, accountID string) (int64, error) {
	if err := f.gate(ctx, "RevokeAllForAccount"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := f.now()
	for _, t := range f.tokens {
		if t.AccountID == accountID && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (f fakeTokens) RevokeExcess(ctx context.Context, accountID string, keep int) (int64, error) {
	if err := f.gate(ctx, "RevokeExcess"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	var active []*models.RefreshToken
	for _, t := range f.tokens {
		if t.AccountID == accountID && t.Active(now) {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })

	var n int64
	for i := keep; i < len(active); i++ {
		active[i].RevokedAt = &now
		n++
	}
	return n, nil
}

func (f fakeTokens) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := f.gate(ctx, "DeleteInactiveBefore"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	kept := f.tokens[:0]
	for _, t := range f.tokens {
		if t.ExpiresAt.Before(cutoff) || (t.RevokedAt != nil && t.RevokedAt.Before(cutoff)) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.tokens = kept
	return n, nil
}

// --- social.Repository ---

type fakeSocial struct{ *fakeStore }

func (f fakeSocial) DeleteFollowEdges(ctx context.Context, accountID string) (int64, error) {
	if err := f.gate(ctx, "DeleteFollowEdges"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	kept := f.follows[:0]
	for _, e := range f.follows {
		if e.FollowerID == accountID || e.FollowedID == accountID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.follows = kept
	return n, nil
}

func (f fakeSocial) CountFollowEdges(ctx context.Context, accountID string) (int64, error) {
	if err := f.gate(ctx, "CountFollowEdges"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.follows {
		if e.FollowerID == accountID || e.FollowedID == accountID {
			n++
		}
	}
	return n, nil
}

// --- repomanager.RepositoryManager ---

type fakeRepoManager struct{ store *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository        { return m.store }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return fakeTokens{m.store}
}
func (m *fakeRepoManager) Social(dbx.DBTX) social.Repository { return fakeSocial{m.store} }

// --- helpers ---

// cheap argon2 parameters keep the suite fast
var testArgon2 = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "test-secret",
		TokenIssuer:                  "chirp",
		TokenAudience:                "chirp-clients",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 24 * time.Hour,
		StoreTimeout:                 time.Second,
		MaxActiveSessions:            10,
		Argon2:                       testArgon2,
		S3Region:                     "us-east-1",
		S3RootUser:                   "minioadmin",
		S3RootPassword:               "minioadmin",
		S3BaseEndpoint:               "http://127.0.0.1:9000",
		S3Bucket:                     "avatars",
		S3PublicBaseURL:              "http://cdn.local/avatars/",
		AvatarUploadValidity:         15 * time.Minute,
	}
}

// newTxDB returns a real *sql.DB so dbx.WithTx can begin and commit; the
// fake repositories ignore the handle they are given.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type authFixture struct {
	svc    *AuthService
	store  *fakeStore
	signer *auth.Signer
	clock  *testClock
	cfg    *config.Config
}

func newAuthFixture(t *testing.T, mutate func(*config.Config)) *authFixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	signer, err := auth.NewSigner([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.TokenAudience)
	require.NoError(t, err)

	clock := &testClock{t: time.Now().UTC()}
	signer.SetClock(clock.Now)

	store := newFakeStore()
	store.now = clock.Now

	svc, err := NewAuthService(newTxDB(t), &fakeRepoManager{store: store}, signer, logging.Nop(), cfg)
	require.NoError(t, err)
	svc.now = clock.Now

	return &authFixture{svc: svc, store: store, signer: signer, clock: clock, cfg: cfg}
}

func (f *authFixture) register(t *testing.T, username string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Str0ng!Pass",
	})
	require.NoError(t, err)
	return res
}
