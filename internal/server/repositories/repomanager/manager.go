package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chirp/internal/dbx"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/social"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Social(db dbx.DBTX) social.Repository
}
