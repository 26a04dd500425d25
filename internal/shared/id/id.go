// Package id provides prefixed ULID generation for the bridge.
//
// ULIDs sort by creation time, so webview listings come back in creation
// order without a separate timestamp. Prefixes keep ids readable in logs:
//   - wv_*  webviews
//   - req_* API requests
//   - cli_* stream clients
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// WebviewID identifies a webview session
type WebviewID string

// RequestID identifies an API request
type RequestID string

// ClientID identifies a connected event stream client
type ClientID string

const (
	WebviewPrefix = "wv"
	RequestPrefix = "req"
	ClientPrefix  = "cli"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// entropy, so ids created in the same millisecond still sort in order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewWebviewID generates a new webview ID
func NewWebviewID() WebviewID {
	return WebviewID(Default().GenerateWithPrefix(WebviewPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewClientID generates a new stream client ID
func NewClientID() ClientID {
	return ClientID(Default().GenerateWithPrefix(ClientPrefix))
}

func (id WebviewID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id ClientID) String() string  { return string(id) }

// ============================================================================
// Validation
// ============================================================================

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// ParsePrefixed splits a prefixed id and parses its ULID part.
func ParsePrefixed(id, prefix string) (ulid.ULID, error) {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("id %q does not have prefix %q", id, prefix)
	}
	return ulid.Parse(rest)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
