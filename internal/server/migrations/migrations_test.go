package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00001_accounts.sql",
		"00002_refresh_tokens.sql",
		"00003_social_graph.sql",
	}, names)

	for _, name := range names {
		b, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		assert.Contains(t, string(b), "-- +goose Up", name)
		assert.Contains(t, string(b), "-- +goose Down", name)
	}
}

func TestMigrations_ReferentialRules(t *testing.T) {
	b, err := fs.ReadFile(Migrations, "00003_social_graph.sql")
	require.NoError(t, err)
	sql := string(b)

	assert.Contains(t, sql, "follower_id UUID        NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT")
	assert.Contains(t, sql, "followed_id UUID        NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT")
	assert.Contains(t, sql, "reply_to_post_id UUID REFERENCES posts (id) ON DELETE SET NULL")
	assert.True(t, strings.Contains(sql, "UNIQUE (follower_id, followed_id)"))
	assert.True(t, strings.Contains(sql, "UNIQUE (account_id, post_id)"))
}
