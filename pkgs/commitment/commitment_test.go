package commitment

import (
	"strings"
	"testing"
)

func TestCommitVerifyRoundTrip(t *testing.T) {
	c := Commit("secret-data", "nonce-1")

	if len(c) != 64 {
		t.Fatalf("commitment length = %d, want 64 hex chars", len(c))
	}
	if !Verify(c, "secret-data", "nonce-1") {
		t.Fatal("commitment did not verify against original data and nonce")
	}
}

func TestVerifyRejectsWrongData(t *testing.T) {
	c := Commit("secret-data", "nonce-1")

	if Verify(c, "other-data", "nonce-1") {
		t.Fatal("commitment verified against different data")
	}
}

func TestVerifyRejectsWrongNonce(t *testing.T) {
	c := Commit("secret-data", "nonce-1")

	if Verify(c, "secret-data", "nonce-2") {
		t.Fatal("commitment verified against different nonce")
	}
}

func TestVerifyRejectsMalformedCommitment(t *testing.T) {
	cases := []string{"", "deadbeef", strings.Repeat("z", 64)}
	for _, c := range cases {
		if Verify(c, "secret-data", "nonce-1") {
			t.Fatalf("malformed commitment %q verified", c)
		}
	}
}

func TestVerifyIsCaseInsensitiveOnHex(t *testing.T) {
	c := Commit("secret-data", "nonce-1")

	if !Verify(strings.ToUpper(c), "secret-data", "nonce-1") {
		t.Fatal("uppercase hex commitment did not verify")
	}
}

func TestCommitIsDeterministic(t *testing.T) {
	if Commit("a", "b") != Commit("a", "b") {
		t.Fatal("identical inputs produced different commitments")
	}
	if Commit("a", "b") == Commit("b", "a") {
		t.Fatal("swapped data and nonce produced identical commitments")
	}
}

func TestTokenCommitmentOrderMatters(t *testing.T) {
	tokens := []string{"tok-a", "tok-b"}
	c := CommitTokens(tokens, "n")

	if !VerifyTokens(c, []string{"tok-a", "tok-b"}, "n") {
		t.Fatal("token commitment did not verify against original list")
	}
	if VerifyTokens(c, []string{"tok-b", "tok-a"}, "n") {
		t.Fatal("token commitment verified against reordered list")
	}
	if VerifyTokens(c, []string{"tok-x", "tok-y"}, "n") {
		t.Fatal("token commitment verified against substituted tokens")
	}
}

func TestTokenCommitmentElementBoundaries(t *testing.T) {
	c := CommitTokens([]string{"a", "b"}, "n")

	// A single token containing the separator must not collide with the
	// two-token list it would flatten into.
	if VerifyTokens(c, []string{"a,b"}, "n") {
		t.Fatal("token commitment verified against a merged single token")
	}
	if VerifyTokens(CommitTokens([]string{"a,b"}, "n"), []string{"a", "b"}, "n") {
		t.Fatal("single-token commitment verified against a split list")
	}
	if VerifyTokens(CommitTokens([]string{`a"`, "b"}, "n"), []string{"a", `","b`}, "n") {
		t.Fatal("token commitment verified across shifted quote boundaries")
	}
}

func TestMoveCommitment(t *testing.T) {
	positions := []int{3, 1}
	abilities := []string{"boost", "none"}
	c := CommitMoves(positions, abilities, "round-nonce")

	if !VerifyMoves(c, positions, abilities, "round-nonce") {
		t.Fatal("move commitment did not verify against original move")
	}
	if VerifyMoves(c, []int{1, 3}, abilities, "round-nonce") {
		t.Fatal("move commitment verified against different positions")
	}
	if VerifyMoves(c, positions, []string{"none", "boost"}, "round-nonce") {
		t.Fatal("move commitment verified against different abilities")
	}
	if VerifyMoves(c, positions, []string{"boost,none"}, "round-nonce") {
		t.Fatal("move commitment verified against a merged ability tag")
	}
}
