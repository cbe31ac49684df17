// Package remote implements the versioned remote store the workbook syncs
// against. Every fetch yields a version token, every put must present the
// token it most recently observed, and a put that loses that race fails with
// a conflict instead of silently overwriting.
package remote

import "context"

// Client is the fetch/put contract against the remote store. Implementations
// perform no automatic merge and no automatic retry; conflict recovery is the
// caller's decision.
type Client interface {
	// Fetch returns the remote content and the version token identifying it.
	Fetch(ctx context.Context) (content []byte, token string, err error)
	// Put overwrites the remote content. token must be the token from the
	// most recent fetch or put; a stale token fails with errs.ErrConflict.
	// On success the returned token must replace the old one before another
	// put is attempted.
	Put(ctx context.Context, content []byte, token, message string) (newToken string, err error)
}
