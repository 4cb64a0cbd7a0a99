package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, so keys built
// from them keep insertion order within a DynamoDB partition.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Prefixed returns prefix followed by a new ULID, e.g. "anon#01J...".
func Prefixed(prefix string) string {
	return prefix + New()
}
