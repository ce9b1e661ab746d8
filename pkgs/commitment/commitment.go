// Package commitment implements the hash-based commit/reveal primitive used
// throughout the match protocol. A player first publishes Commit(data, nonce)
// to bind themselves to secret data, then later reveals the data and nonce;
// Verify recomputes the hash and compares. All functions are pure.
package commitment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// Commit returns the hex-encoded SHA-256 digest of data concatenated with
// the nonce.
func Commit(data, nonce string) string {
	sum := sha256.Sum256([]byte(data + nonce))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the commitment for data and nonce and compares it
// against the published commitment. Comparison is constant-time.
func Verify(commitment, data, nonce string) bool {
	expected := Commit(data, nonce)
	if len(commitment) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(commitment)), []byte(expected)) == 1
}

// canonicalTokens serializes a token list for hashing. Tokens are quoted
// and joined in revealed order, so element boundaries are unambiguous and
// order is part of the commitment.
func canonicalTokens(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = strconv.Quote(tok)
	}
	return strings.Join(quoted, ",")
}

// CommitTokens commits to an ordered list of token secrets.
func CommitTokens(tokens []string, nonce string) string {
	return Commit(canonicalTokens(tokens), nonce)
}

// VerifyTokens checks a revealed token list and nonce against a token
// commitment.
func VerifyTokens(commitment string, tokens []string, nonce string) bool {
	return Verify(commitment, canonicalTokens(tokens), nonce)
}

// canonicalMoves serializes a move reveal for hashing: unit positions joined
// with commas, a semicolon separator, then quoted ability tags joined with
// commas. Quoting keeps a tag containing a separator from shifting element
// boundaries.
func canonicalMoves(positions []int, abilities []string) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	quoted := make([]string, len(abilities))
	for i, a := range abilities {
		quoted[i] = strconv.Quote(a)
	}
	return strings.Join(parts, ",") + ";" + strings.Join(quoted, ",")
}

// CommitMoves commits to a round's unit positions and ability tags.
func CommitMoves(positions []int, abilities []string, nonce string) string {
	return Commit(canonicalMoves(positions, abilities), nonce)
}

// VerifyMoves checks a revealed move against a move commitment.
func VerifyMoves(commitment string, positions []int, abilities []string, nonce string) bool {
	return Verify(commitment, canonicalMoves(positions, abilities), nonce)
}
