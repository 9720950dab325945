// Package social covers the parts of the social graph that identity
// lifecycle depends on. Follow edges restrict account deletion, so they must
// be cleared explicitly first.
package social

import "context"

type Repository interface {
	// DeleteFollowEdges removes every follow edge where the account is the
	// follower or the followed, and returns how many were removed.
	DeleteFollowEdges(ctx context.Context, accountID string) (int64, error)

	// CountFollowEdges counts edges touching the account in either direction.
	CountFollowEdges(ctx context.Context, accountID string) (int64, error)
}
