package provision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// EventPaymentSucceeded is the only event kind that triggers provisioning.
// Every other kind is acknowledged and dropped so the provider does not
// disable the endpoint over repeated errors.
const EventPaymentSucceeded = "payment.succeeded"

// eventTypePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Event is the typed envelope of a payment provider webhook delivery.
// Constructed once by ParseEvent from the verified raw body; read-only
// thereafter.
type Event struct {
	// Type is a full-stop delimited event kind, e.g. "payment.succeeded"
	Type string `json:"type"`

	// Data is the event payload
	Data EventData `json:"data"`
}

// EventData carries the purchase details the pipeline cares about. The
// provider emits checkout metadata either nested or flattened with an
// underscore prefix; both forms are recognized and normalized by the
// accessors below.
type EventData struct {
	Customer *Customer `json:"customer,omitempty"`
	Email    string    `json:"email,omitempty"`

	Metadata               *Metadata `json:"metadata,omitempty"`
	MetadataGithubUsername string    `json:"metadata_github_username,omitempty"`
}

// Customer identifies the purchaser as known to the payment provider.
type Customer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Metadata is the checkout metadata attached by the merchant's own
// checkout flow.
type Metadata struct {
	GithubUsername string `json:"github_username,omitempty"`
}

// MetadataUsername returns the checkout-supplied GitHub username, or ""
// when none was attached. The flattened key wins when both forms are
// present: flattened fields are how query-string metadata survives the
// checkout round trip.
func (d EventData) MetadataUsername() string {
	if u := strings.TrimSpace(d.MetadataGithubUsername); u != "" {
		return u
	}
	if d.Metadata != nil {
		return strings.TrimSpace(d.Metadata.GithubUsername)
	}
	return ""
}

// CustomerEmail returns the purchaser's email, preferring the customer
// record over the top-level field, or "" when neither is present.
func (d EventData) CustomerEmail() string {
	if d.Customer != nil {
		if email := strings.TrimSpace(d.Customer.Email); email != "" {
			return email
		}
	}
	return strings.TrimSpace(d.Email)
}

// Validate validates the envelope structure
func (e Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}

	if !eventTypePattern.MatchString(e.Type) {
		return fmt.Errorf("type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.Type)
	}

	return nil
}

// ParseEvent parses a raw JSON webhook body into an Event
func ParseEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("unmarshaling event: %w", err)
	}

	if err := event.Validate(); err != nil {
		return Event{}, fmt.Errorf("validating event: %w", err)
	}

	return event, nil
}
