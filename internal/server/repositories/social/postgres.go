package social

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chirp/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) DeleteFollowEdges(ctx context.Context, accountID string) (int64, error) {
	query :=
		`DELETE FROM follows
		 WHERE follower_id = $1 OR followed_id = $1`

	res, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountFollowEdges(ctx context.Context, accountID string) (int64, error) {
	query :=
		`SELECT count(*) FROM follows
		 WHERE follower_id = $1 OR followed_id = $1`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
