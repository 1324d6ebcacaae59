package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SecretPrefix marks base64-encoded symmetric secrets; secrets
	// without it are used as literal UTF-8 bytes
	SecretPrefix = "whsec_"

	// SignatureVersion is the version tag for versioned signatures
	SignatureVersion = "v1"

	// SimpleSignaturePrefix optionally prefixes legacy hex signatures
	SimpleSignaturePrefix = "sha256="

	// MinSecretBytes is the minimum recommended generated secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum recommended generated secret size (512 bits)
	MaxSecretBytes = 64
)

// Secret represents a webhook signing secret
type Secret struct {
	raw    []byte
	source string
}

// GenerateSecret creates a new cryptographically secure signing secret
// between MinSecretBytes and MaxSecretBytes in size.
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:    bytes,
		source: SecretPrefix + base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// ParseSecret parses a signing secret as configured. Values with the
// whsec_ prefix are base64-decoded to raw key bytes; anything else is
// taken as a literal UTF-8 key.
func ParseSecret(encoded string) (Secret, error) {
	if encoded == "" {
		return Secret{}, fmt.Errorf("secret is empty")
	}

	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{
			raw:    []byte(encoded),
			source: encoded,
		}, nil
	}

	b64 := strings.TrimPrefix(encoded, SecretPrefix)
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	return Secret{
		raw:    raw,
		source: encoded,
	}, nil
}

// String returns the secret as it was configured or generated
func (s Secret) String() string {
	return s.source
}

// Bytes returns the raw secret key bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

// Signature represents one versioned webhook signature
type Signature struct {
	Version string
	Value   string
}

// String returns the signature in the format: v1,<base64_signature>
func (s Signature) String() string {
	return fmt.Sprintf("%s,%s", s.Version, s.Value)
}

// ParseSignature parses a signature string in the format: v1,<base64_signature>
func ParseSignature(sig string) (Signature, error) {
	version, value, ok := strings.Cut(sig, ",")
	if !ok {
		return Signature{}, fmt.Errorf("invalid signature format, expected 'version,signature'")
	}

	return Signature{
		Version: version,
		Value:   value,
	}, nil
}

// Sign creates a versioned signature for a webhook delivery.
// The signed content is: {msgID}.{timestamp}.{payload}
// The timestamp is the raw header value: it is never re-parsed or
// re-formatted, for the same reason the payload bytes are used verbatim.
func Sign(secret Secret, msgID, timestamp string, payload []byte) Signature {
	signedContent := fmt.Sprintf("%s.%s.%s", msgID, timestamp, payload)

	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write([]byte(signedContent))

	return Signature{
		Version: SignatureVersion,
		Value:   base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}
}

// SignSimple creates a legacy simple signature: HMAC-SHA256 over the raw
// payload alone, hex-encoded.
func SignSimple(secret Secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a delivery against the signature header. The header may
// carry several whitespace-separated candidates (secret rotation); any
// matching v1 candidate authenticates. When no versioned candidate
// matches, one legacy comparison runs against a simple hex HMAC of the
// body alone, accepting a bare digest or a sha256=-prefixed one.
// All comparisons are constant-time.
func Verify(secret Secret, msgID, timestamp string, payload []byte, header string) bool {
	expected := Sign(secret, msgID, timestamp, payload)

	matched := false
	for _, candidate := range strings.Fields(header) {
		sig, err := ParseSignature(candidate)
		if err != nil || sig.Version != SignatureVersion {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(sig.Value), []byte(expected.Value)) == 1 {
			matched = true
		}
	}
	if matched {
		return true
	}

	simple := SignSimple(secret, payload)
	candidate := strings.TrimPrefix(strings.TrimSpace(header), SimpleSignaturePrefix)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(simple)) == 1
}

// ParseSignatureHeader parses the webhook-signature header which contains
// space-delimited signatures: "v1,sig1 v1,sig2"
func ParseSignatureHeader(header string) ([]Signature, error) {
	if header == "" {
		return nil, fmt.Errorf("signature header is empty")
	}

	parts := strings.Fields(header)
	signatures := make([]Signature, 0, len(parts))

	for _, part := range parts {
		sig, err := ParseSignature(part)
		if err != nil {
			return nil, fmt.Errorf("parsing signature '%s': %w", part, err)
		}

		signatures = append(signatures, sig)
	}

	if len(signatures) == 0 {
		return nil, fmt.Errorf("no valid signatures found in header")
	}

	return signatures, nil
}

// BuildSignatureHeader builds the webhook-signature header value
// from multiple signatures (space-delimited)
func BuildSignatureHeader(signatures []Signature) string {
	parts := make([]string, len(signatures))
	for i, sig := range signatures {
		parts[i] = sig.String()
	}
	return strings.Join(parts, " ")
}
