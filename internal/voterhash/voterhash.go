// Package voterhash derives the pseudonymous voter key stored with ballots.
//
// The digest is a keyed BLAKE2b-256 of the account id and question id, so
// the same account gets unrelated keys on different questions and nobody
// without the server secret can map a ballot back to an account.
package voterhash

import (
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrEmptySecret is returned when the hasher is built without a key.
var ErrEmptySecret = errors.New("voter hash secret is empty")

// Hasher computes voter digests with a fixed server secret.
type Hasher struct {
	key []byte
}

// New returns a Hasher keyed with secret. BLAKE2b keys longer than 64 bytes
// are pre-hashed so any secret length is accepted.
func New(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Hasher{key: key}, nil
}

// Digest returns the hex voter hash for accountID on questionID. It is
// deterministic for the same inputs and secret.
func (h *Hasher) Digest(accountID, questionID uuid.UUID) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Only reachable with a key over 64 bytes, which New prevents.
		panic(err)
	}
	mac.Write(accountID[:])
	mac.Write(questionID[:])
	return hex.EncodeToString(mac.Sum(nil))
}

// DigestAll maps each account to its digest on questionID.
func (h *Hasher) DigestAll(accountIDs []uuid.UUID, questionID uuid.UUID) map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(accountIDs))
	for _, id := range accountIDs {
		out[h.Digest(id, questionID)] = id
	}
	return out
}
