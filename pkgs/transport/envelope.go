// Package transport defines the signed envelope players and validators
// exchange over the relay network, and the bridge between gossipsub and
// the match tracker. Senders are authenticated here: an event only reaches
// the tracker if the envelope signature verifies and the inner message
// names the signing identity as its actor.
package transport

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// Envelope kinds carried on the match events topic.
const (
	KindMatchChallenge  = "match_challenge"
	KindMatchAcceptance = "match_acceptance"
	KindTokenReveal     = "token_reveal"
	KindMoveCommitment  = "move_commitment"
	KindMoveReveal      = "move_reveal"
	KindMatchResult     = "match_result"
)

// Envelope kinds published by validators on the loot events topic.
const (
	KindLootDistribution  = "loot_distribution"
	KindMatchInvalidation = "match_invalidation"
)

// Envelope is the signed wire frame for every relay message. ID is the hex
// SHA-256 of the signing bytes, so it is content-derived and globally
// unique; a challenge envelope's ID becomes the match identifier.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Sender    string          `json:"sender"` // hex-encoded ed25519 public key
	CreatedAt int64           `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
	Sig       string          `json:"sig"` // hex-encoded ed25519 signature
}

// InvalidationNotice is the loot-topic payload for a match that ended
// Invalid.
type InvalidationNotice struct {
	MatchID   string `json:"match_id"`
	Reason    string `json:"reason"`
	Validator string `json:"validator"`
}

// signingBytes builds the canonical byte string covered by both the
// envelope ID and the signature.
func signingBytes(kind, sender string, createdAt int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(kind)
	buf.WriteByte(0)
	buf.WriteString(sender)
	buf.WriteByte(0)
	fmt.Fprintf(&buf, "%d", createdAt)
	buf.WriteByte(0)
	buf.Write(payload)
	return buf.Bytes()
}

// SenderID derives the sender identity string for a private key: the hex
// encoding of its raw ed25519 public key.
func SenderID(priv crypto.PrivKey) (string, error) {
	raw, err := priv.GetPublic().Raw()
	if err != nil {
		return "", fmt.Errorf("failed to extract public key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Seal marshals the payload and produces a signed envelope.
func Seal(priv crypto.PrivKey, kind string, payload interface{}, now time.Time) (*Envelope, error) {
	sender, err := SenderID(priv)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	createdAt := now.Unix()
	msg := signingBytes(kind, sender, createdAt, data)

	sig, err := priv.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s envelope: %w", kind, err)
	}

	id := sha256.Sum256(msg)
	return &Envelope{
		ID:        hex.EncodeToString(id[:]),
		Kind:      kind,
		Sender:    sender,
		CreatedAt: createdAt,
		Payload:   data,
		Sig:       hex.EncodeToString(sig),
	}, nil
}

// Decode parses raw bytes into an envelope. No verification happens here.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Kind == "" || env.Sender == "" || env.Sig == "" {
		return nil, fmt.Errorf("envelope missing required fields")
	}
	return &env, nil
}

// Verify checks the envelope's content-derived ID and its signature.
func (e *Envelope) Verify() error {
	msg := signingBytes(e.Kind, e.Sender, e.CreatedAt, e.Payload)

	want := sha256.Sum256(msg)
	if e.ID != hex.EncodeToString(want[:]) {
		return fmt.Errorf("envelope id does not match content")
	}

	pubBytes, err := hex.DecodeString(e.Sender)
	if err != nil {
		return fmt.Errorf("invalid sender encoding: %w", err)
	}
	pub, err := crypto.UnmarshalEd25519PublicKey(pubBytes)
	if err != nil {
		return fmt.Errorf("invalid sender public key: %w", err)
	}

	sig, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	ok, err := pub.Verify(msg, sig)
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("signature does not match sender")
	}
	return nil
}

// Event converts a verified envelope into a tracker event. The sender must
// be the actor the payload names; a challenge envelope additionally stamps
// its own ID as the match identifier.
func (e *Envelope) Event() (protocol.MatchEvent, error) {
	switch e.Kind {
	case KindMatchChallenge:
		var c protocol.MatchChallenge
		if err := json.Unmarshal(e.Payload, &c); err != nil {
			return nil, fmt.Errorf("bad challenge payload: %w", err)
		}
		if c.Challenger != e.Sender {
			return nil, fmt.Errorf("challenge names %s but was signed by %s", c.Challenger, e.Sender)
		}
		c.MatchID = e.ID
		return protocol.ChallengePosted{Challenge: c}, nil

	case KindMatchAcceptance:
		var a protocol.MatchAcceptance
		if err := json.Unmarshal(e.Payload, &a); err != nil {
			return nil, fmt.Errorf("bad acceptance payload: %w", err)
		}
		if a.Acceptor != e.Sender {
			return nil, fmt.Errorf("acceptance names %s but was signed by %s", a.Acceptor, e.Sender)
		}
		return protocol.ChallengeAccepted{Acceptance: a}, nil

	case KindTokenReveal:
		var r protocol.TokenReveal
		if err := json.Unmarshal(e.Payload, &r); err != nil {
			return nil, fmt.Errorf("bad token reveal payload: %w", err)
		}
		if r.Player != e.Sender {
			return nil, fmt.Errorf("token reveal names %s but was signed by %s", r.Player, e.Sender)
		}
		return protocol.TokenRevealed{Reveal: r}, nil

	case KindMoveCommitment:
		var c protocol.MoveCommitment
		if err := json.Unmarshal(e.Payload, &c); err != nil {
			return nil, fmt.Errorf("bad move commitment payload: %w", err)
		}
		if c.Player != e.Sender {
			return nil, fmt.Errorf("move commitment names %s but was signed by %s", c.Player, e.Sender)
		}
		return protocol.MoveCommitted{Commitment: c}, nil

	case KindMoveReveal:
		var r protocol.MoveReveal
		if err := json.Unmarshal(e.Payload, &r); err != nil {
			return nil, fmt.Errorf("bad move reveal payload: %w", err)
		}
		if r.Player != e.Sender {
			return nil, fmt.Errorf("move reveal names %s but was signed by %s", r.Player, e.Sender)
		}
		return protocol.MoveRevealed{Reveal: r}, nil

	case KindMatchResult:
		var res protocol.MatchResult
		if err := json.Unmarshal(e.Payload, &res); err != nil {
			return nil, fmt.Errorf("bad match result payload: %w", err)
		}
		if res.Player != e.Sender {
			return nil, fmt.Errorf("match result names %s but was signed by %s", res.Player, e.Sender)
		}
		return protocol.ResultSubmitted{Result: res}, nil

	default:
		return nil, fmt.Errorf("unknown envelope kind %q", e.Kind)
	}
}
