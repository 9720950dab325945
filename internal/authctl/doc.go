// Package authctl implements the chirp operator CLI: schema migrations and
// account administration that the public HTTP API does not expose.
//
// Usage:
//
//	authctl [-c config.json] [-d dsn] <command> [flags]
//
// Commands:
//   - migrate
//   - create-account -u NAME -e EMAIL [-n DISPLAY]
//   - revoke-sessions -u NAME
//   - delete-account -u NAME
//   - prune -older-than DURATION
//   - set-avatar -u NAME -f FILE
package authctl
