// Package gossipconfig provides standardized gossipsub configuration for
// the match relay network. The parameters are tuned to:
// 1. Prevent aggressive pruning in asymmetric player/validator scenarios
// 2. Maintain mesh stability with high positive peer scores
// 3. Disable penalties that could disconnect low-activity peers
// 4. Pass all validation requirements of go-libp2p-pubsub v0.12.x
package gossipconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
)

// MatchEventsGossipParams returns the gossipsub parameters used by all
// peers in the match events mesh. Players publish in bursts and validators
// mostly listen, so mesh maintenance leans toward stability over churn.
func MatchEventsGossipParams() *pubsub.GossipSubParams {
	params := &pubsub.GossipSubParams{
		// Wider mesh than the defaults so burst traffic from short-lived
		// player sessions still propagates.
		D:      10,
		Dlo:    8,
		Dhi:    16,
		Dlazy:  10,
		Dout:   4,
		Dscore: 6,

		// Faster heartbeat for more responsive mesh maintenance.
		HeartbeatInterval: 700 * time.Millisecond,

		// Keep more message history; commitment/reveal pairs must both
		// arrive even when a player briefly drops.
		HistoryLength: 12,
		HistoryGossip: 6,

		GossipFactor: 0.25,

		OpportunisticGraftTicks: 30,
		OpportunisticGraftPeers: 4,

		// Long prune backoff to prevent aggressive pruning of idle peers.
		PruneBackoff:       5 * time.Minute,
		UnsubscribeBackoff: 30 * time.Second,

		MaxPendingConnections: 256,
		ConnectionTimeout:     60 * time.Second,

		DirectConnectTicks:        300,
		DirectConnectInitialDelay: 1 * time.Second,

		FanoutTTL: 60 * time.Second,
	}

	return params
}

// MatchEventsPeerScoreParams returns the peer scoring parameters for the
// match events mesh with mesh delivery penalties disabled, so players who
// only publish a handful of messages per match are never pruned.
func MatchEventsPeerScoreParams(hostID peer.ID) *pubsub.PeerScoreParams {
	return &pubsub.PeerScoreParams{
		AppSpecificScore: func(p peer.ID) float64 {
			if p == hostID {
				return 100000.0
			}
			return 10000.0
		},
		AppSpecificWeight: 10.0,

		TopicScoreCap: 100000.0,

		// IP colocation penalties disabled: many players sit behind the
		// same NAT.
		IPColocationFactorThreshold: 1000,
		IPColocationFactorWeight:    0.0,
		IPColocationFactorWhitelist: nil,

		// Behaviour penalties disabled (weight = 0).
		BehaviourPenaltyWeight:    0.0,
		BehaviourPenaltyThreshold: 1000.0,
		BehaviourPenaltyDecay:     0.999,

		// Validation requires both of these.
		DecayInterval: 1 * time.Second,
		DecayToZero:   0.01,

		RetainScore: 30 * time.Minute,

		// 0 means use global TimeCacheDuration.
		SeenMsgTTL: 0,

		Topics: make(map[string]*pubsub.TopicScoreParams),
	}
}

// MatchEventsTopicScoreParams returns topic scoring parameters for the
// match event topics with mesh delivery penalties disabled.
func MatchEventsTopicScoreParams() *pubsub.TopicScoreParams {
	return &pubsub.TopicScoreParams{
		TopicWeight: 10.0,

		// P1: reward staying in mesh.
		TimeInMeshWeight:  10.0,
		TimeInMeshQuantum: 1 * time.Second,
		TimeInMeshCap:     10000.0,

		// P2: reward first deliveries.
		FirstMessageDeliveriesWeight: 100.0,
		FirstMessageDeliveriesDecay:  0.999,
		FirstMessageDeliveriesCap:    10000.0,

		// P3: mesh delivery penalty disabled (weight = 0, activation set
		// high enough to never trigger).
		MeshMessageDeliveriesWeight:     0.0,
		MeshMessageDeliveriesDecay:      0.999,
		MeshMessageDeliveriesThreshold:  1.0,
		MeshMessageDeliveriesCap:        1.0,
		MeshMessageDeliveriesActivation: 24 * time.Hour,
		MeshMessageDeliveriesWindow:     24 * time.Hour,

		// P3b: mesh failure penalty disabled.
		MeshFailurePenaltyWeight: 0.0,
		MeshFailurePenaltyDecay:  0.9,

		// P4: invalid messages still penalized; forged envelopes must cost
		// the sender.
		InvalidMessageDeliveriesWeight: -100.0,
		InvalidMessageDeliveriesDecay:  0.5,
	}
}

// MatchEventsPeerScoreThresholds returns lenient thresholds for the match
// events mesh to prevent aggressive pruning.
func MatchEventsPeerScoreThresholds() *pubsub.PeerScoreThresholds {
	return &pubsub.PeerScoreThresholds{
		GossipThreshold:             -100000,
		PublishThreshold:            -200000,
		GraylistThreshold:           -500000,
		AcceptPXThreshold:           0,
		OpportunisticGraftThreshold: 1.0,
	}
}

// GenerateParamHash creates a deterministic hash of gossipsub parameters.
// Peers log it at startup to verify they share one configuration.
func GenerateParamHash(params *pubsub.GossipSubParams) string {
	paramStr := fmt.Sprintf("D:%d_Dlo:%d_Dhi:%d_Dlazy:%d_HB:%d_FB:%d_MC:%d_MIT:%d",
		params.D,
		params.Dlo,
		params.Dhi,
		params.Dlazy,
		params.HeartbeatInterval.Milliseconds(),
		int(params.FanoutTTL.Seconds()),
		params.MaxPendingConnections,
		params.MaxIHaveLength,
	)

	hash := sha256.Sum256([]byte(paramStr))
	return hex.EncodeToString(hash[:8])
}

// ConfigureMatchEventsMesh returns gossipsub params, peer score params,
// thresholds and a parameter hash for the match and loot event topics.
// Every node participating in those topics should use these.
func ConfigureMatchEventsMesh(hostID peer.ID, matchEventsTopic, lootEventsTopic string) (*pubsub.GossipSubParams, *pubsub.PeerScoreParams, *pubsub.PeerScoreThresholds, string) {
	gossipParams := MatchEventsGossipParams()
	peerScoreParams := MatchEventsPeerScoreParams(hostID)
	peerScoreThresholds := MatchEventsPeerScoreThresholds()

	paramHash := GenerateParamHash(gossipParams)

	topicScoreParams := MatchEventsTopicScoreParams()
	peerScoreParams.Topics[matchEventsTopic] = topicScoreParams
	peerScoreParams.Topics[lootEventsTopic] = topicScoreParams

	return gossipParams, peerScoreParams, peerScoreThresholds, paramHash
}
