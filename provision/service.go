package provision

import (
	"context"
	"errors"
	"fmt"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// ErrIdentityNotFound means no GitHub account could be determined for the
// purchase. It is a recognized outcome, not a failure of the pipeline:
// the caller surfaces it as a warning for manual follow-up.
var ErrIdentityNotFound = errors.New("github user not found")

// UseCase defines the provisioning operations triggered by a successful payment
type UseCase interface {
	Resolve(ctx context.Context, data EventData) (Identity, error)
	Grant(ctx context.Context, username string) error
}

type Service struct {
	Searcher UserSearcher
	Inviter  CollaboratorInviter
}

// NewService creates a new provisioning service with dependency injection
func NewService(searcher UserSearcher, inviter CollaboratorInviter) *Service {
	return &Service{
		Searcher: searcher,
		Inviter:  inviter,
	}
}

// Resolve determines the GitHub username for a purchase. Checkout metadata
// always wins when present and costs no network call; otherwise one
// directory search by email is attempted. Returns ErrIdentityNotFound when
// neither path yields an account.
func (s *Service) Resolve(ctx context.Context, data EventData) (Identity, error) {
	if username := data.MetadataUsername(); username != "" {
		return Identity{Username: username, Source: SourceMetadata}, nil
	}

	email := data.CustomerEmail()
	if email == "" {
		return Identity{}, ErrIdentityNotFound
	}

	login, found, err := s.Searcher.SearchByEmail(ctx, email)
	if err != nil {
		return Identity{}, fmt.Errorf("searching user by email: %w", err)
	}
	if !found {
		return Identity{}, ErrIdentityNotFound
	}

	return Identity{Username: login, Source: SourceEmailSearch}, nil
}

// Grant invites the resolved username to the configured repository with
// read-only permission. The provider treats repeated invites for the same
// user as success, so Grant carries no state across calls.
func (s *Service) Grant(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if err := s.Inviter.Invite(ctx, username); err != nil {
		return fmt.Errorf("inviting %s to repository: %w", username, err)
	}
	return nil
}
