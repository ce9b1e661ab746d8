package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// Publisher signs and publishes validator verdicts on the loot events
// topic.
type Publisher struct {
	priv      crypto.PrivKey
	topic     *pubsub.Topic
	validator string
}

// NewPublisher joins the loot events topic.
func NewPublisher(ps *pubsub.PubSub, priv crypto.PrivKey, topicName, validatorID string) (*Publisher, error) {
	topic, err := ps.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %w", topicName, err)
	}
	return &Publisher{
		priv:      priv,
		topic:     topic,
		validator: validatorID,
	}, nil
}

// PublishLootDistribution publishes a signed loot distribution envelope.
func (p *Publisher) PublishLootDistribution(ctx context.Context, loot protocol.LootDistribution) error {
	if err := p.publish(ctx, KindLootDistribution, loot); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"match_id": loot.MatchID,
		"amount":   loot.LootAmount,
	}).Info("Published loot distribution")
	return nil
}

// PublishInvalidation publishes a signed invalidation notice.
func (p *Publisher) PublishInvalidation(ctx context.Context, matchID, reason string) error {
	notice := InvalidationNotice{
		MatchID:   matchID,
		Reason:    reason,
		Validator: p.validator,
	}
	if err := p.publish(ctx, KindMatchInvalidation, notice); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"match_id": matchID,
		"reason":   reason,
	}).Info("Published match invalidation")
	return nil
}

func (p *Publisher) publish(ctx context.Context, kind string, payload interface{}) error {
	env, err := Seal(p.priv, kind, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", kind, err)
	}

	if err := p.topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}
	return nil
}

// Close leaves the topic.
func (p *Publisher) Close() error {
	return p.topic.Close()
}
