package provision

import "fmt"

/* Source records how a purchaser was matched to a GitHub account.
 * Metadata is the trusted path (the merchant's checkout captured the
 * username); EmailSearch is a best-effort directory lookup.
 */
type Source int

const (
	SourceMetadata Source = iota + 1
	SourceEmailSearch
)

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourceMetadata:
		return "metadata"
	case SourceEmailSearch:
		return "email_search"
	default:
		return "unknown"
	}
}

// Validate checks if the source is valid
func (s Source) Validate() error {
	if s != SourceMetadata && s != SourceEmailSearch {
		return fmt.Errorf("invalid identity source: %d", s)
	}
	return nil
}

// Identity is a resolved GitHub account for a paying customer.
// Source is carried through to the final response for auditability.
type Identity struct {
	Username string
	Source   Source
}
