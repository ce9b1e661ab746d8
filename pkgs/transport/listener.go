package transport

import (
	"context"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/deduplication"
	"github.com/EthnTuttle/manastr-sub000/pkgs/tracker"
)

// Listener subscribes to the match events topic and feeds verified events
// into the tracker.
type Listener struct {
	tracker *tracker.MatchTracker
	dedup   *deduplication.Deduplicator
	topic   *pubsub.Topic
	sub     *pubsub.Subscription
	selfID  peer.ID
}

// NewListener joins the match events topic and subscribes to it. The
// deduplicator may be nil, in which case gossip redeliveries fall
// through to the tracker's own duplicate handling.
func NewListener(ps *pubsub.PubSub, selfID peer.ID, topicName string, t *tracker.MatchTracker, dedup *deduplication.Deduplicator) (*Listener, error) {
	topic, err := ps.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %w", topicName, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topicName, err)
	}

	log.Infof("Listening for match events on %s", topicName)

	return &Listener{
		tracker: t,
		dedup:   dedup,
		topic:   topic,
		sub:     sub,
		selfID:  selfID,
	}, nil
}

// Run consumes messages until the context is cancelled. Malformed or
// forged envelopes are logged and dropped; only capacity errors from the
// tracker are surfaced in the logs at error level.
func (l *Listener) Run(ctx context.Context) {
	for {
		msg, err := l.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("Failed to read from match events subscription")
			return
		}

		if msg.ReceivedFrom == l.selfID {
			continue
		}

		l.handleMessage(ctx, msg.Data)
	}
}

func (l *Listener) handleMessage(ctx context.Context, data []byte) {
	env, err := Decode(data)
	if err != nil {
		log.WithError(err).Debug("Dropping malformed envelope")
		return
	}

	logger := log.WithFields(log.Fields{
		"envelope_id": env.ID,
		"kind":        env.Kind,
		"sender":      env.Sender,
	})

	if err := env.Verify(); err != nil {
		logger.WithError(err).Warn("Dropping envelope with bad signature")
		return
	}

	if l.dedup != nil {
		fresh, err := l.dedup.CheckAndMark(ctx, env.ID)
		if err != nil {
			logger.WithError(err).Warn("Dedup check failed, processing anyway")
		} else if !fresh {
			logger.Debug("Dropping duplicate envelope")
			return
		}
	}

	ev, err := env.Event()
	if err != nil {
		logger.WithError(err).Warn("Dropping envelope with invalid payload")
		return
	}

	if err := l.tracker.ProcessEvent(ev); err != nil {
		logger.WithError(err).Error("Tracker rejected event")
	}
}

// Close cancels the subscription and leaves the topic.
func (l *Listener) Close() error {
	l.sub.Cancel()
	return l.topic.Close()
}
