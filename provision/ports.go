package provision

import (
	"context"
	"fmt"
)

/* Small, focused interfaces: one per outbound capability.
 * The service depends on these ports, not on the GitHub client,
 * so the pipeline's control flow is unit-testable without live HTTP.
 */

// UserSearcher looks up a platform login by email in the code-hosting
// platform's user directory.
type UserSearcher interface {
	/* SearchByEmail returns the first matching login. found is false
	 * when the directory has no account for the email.
	 */
	SearchByEmail(ctx context.Context, email string) (login string, found bool, err error)
}

// CollaboratorInviter grants an account read access to the configured
// repository.
type CollaboratorInviter interface {
	/* Invite is idempotent on the provider side: re-inviting a user with
	 * a pending or accepted invitation succeeds.
	 */
	Invite(ctx context.Context, username string) error
}

// ProviderError is a failure reported by the collaboration platform's API.
// Message carries the provider's own description when its error body had
// one, so operators see the real reason an invite was rejected.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}
