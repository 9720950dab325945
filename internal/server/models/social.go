package models

import "time"

// Follow is a directed edge: FollowerID follows FollowedID. Posts and likes
// live in the schema only; nothing in this service reads them.
type Follow struct {
	ID         string
	FollowerID string
	FollowedID string
	CreatedAt  time.Time
}
