package transport

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

func newKey(t *testing.T) crypto.PrivKey {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func TestSealVerifyRoundTrip(t *testing.T) {
	priv := newKey(t)
	sender, err := SenderID(priv)
	if err != nil {
		t.Fatalf("SenderID: %v", err)
	}

	env, err := Seal(priv, KindTokenReveal, protocol.TokenReveal{
		MatchID: "m1",
		Player:  sender,
		Tokens:  []string{"tok-a"},
		Nonce:   "n1",
	}, time.Now())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := decoded.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	ev, err := decoded.Event()
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	reveal, ok := ev.(protocol.TokenRevealed)
	if !ok {
		t.Fatalf("expected TokenRevealed, got %T", ev)
	}
	if reveal.Reveal.Player != sender || reveal.Reveal.MatchID != "m1" {
		t.Fatalf("unexpected event payload %+v", reveal.Reveal)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	priv := newKey(t)
	sender, _ := SenderID(priv)

	env, err := Seal(priv, KindTokenReveal, protocol.TokenReveal{
		MatchID: "m1",
		Player:  sender,
		Tokens:  []string{"tok-a"},
		Nonce:   "n1",
	}, time.Now())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	env.Payload = json.RawMessage(`{"match_id":"m1","player":"` + sender + `","tokens":["forged"],"nonce":"n1"}`)
	if err := env.Verify(); err == nil {
		t.Fatal("expected verification failure for tampered payload")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	priv := newKey(t)
	other := newKey(t)
	sender, _ := SenderID(priv)

	env, err := Seal(priv, KindMatchResult, protocol.MatchResult{
		MatchID: "m1",
		Player:  sender,
	}, time.Now())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Re-sign with another key but keep the original sender claim.
	forged, err := Seal(other, KindMatchResult, protocol.MatchResult{
		MatchID: "m1",
		Player:  sender,
	}, time.Now())
	if err != nil {
		t.Fatalf("Seal forged: %v", err)
	}
	env.Sig = forged.Sig
	if err := env.Verify(); err == nil {
		t.Fatal("expected verification failure for wrong signer")
	}
}

func TestEventRejectsSenderMismatch(t *testing.T) {
	priv := newKey(t)

	// The payload names someone other than the signing key.
	env, err := Seal(priv, KindMoveReveal, protocol.MoveReveal{
		MatchID:   "m1",
		Player:    "somebody-else",
		Round:     1,
		Positions: []int{0},
	}, time.Now())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := env.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	_, err = env.Event()
	if err == nil || !strings.Contains(err.Error(), "signed by") {
		t.Fatalf("expected sender mismatch error, got %v", err)
	}
}

func TestChallengeEnvelopeIDBecomesMatchID(t *testing.T) {
	priv := newKey(t)
	sender, _ := SenderID(priv)

	env, err := Seal(priv, KindMatchChallenge, protocol.MatchChallenge{
		Challenger:  sender,
		WagerAmount: 100,
		LeagueID:    2,
	}, time.Now())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	ev, err := env.Event()
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	challenge, ok := ev.(protocol.ChallengePosted)
	if !ok {
		t.Fatalf("expected ChallengePosted, got %T", ev)
	}
	if challenge.Challenge.MatchID != env.ID {
		t.Fatalf("match id %q should equal envelope id %q", challenge.Challenge.MatchID, env.ID)
	}
	if len(challenge.Challenge.MatchID) != 64 {
		t.Fatalf("expected 64-char hex match id, got %q", challenge.Challenge.MatchID)
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	if _, err := Decode([]byte(`{"id":"x"}`)); err == nil {
		t.Fatal("expected error for envelope without kind/sender/sig")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestEventRejectsUnknownKind(t *testing.T) {
	priv := newKey(t)
	env, err := Seal(priv, "mystery_kind", map[string]string{"a": "b"}, time.Now())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := env.Event(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
