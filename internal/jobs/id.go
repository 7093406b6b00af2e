// Package jobs provides identifiers for queued tasks and publish attempts.
package jobs

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// GenerateID creates a new cryptographically random job ID with the given prefix.
// The prefix should include a trailing dash, e.g. "task-", "pub-".
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s job ID", prefix)
	}
	return prefix + hex.EncodeToString(b)
}

// ShortToken returns a short random hex token, used as the final component of
// publish idempotency keys.
func ShortToken() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate random token")
	}
	return hex.EncodeToString(b)
}
