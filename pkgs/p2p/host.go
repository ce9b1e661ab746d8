// Package p2p brings up the libp2p host, DHT and gossipsub router the
// validator uses to follow the match relay network.
package p2p

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/multiformats/go-multiaddr"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/config"
	"github.com/EthnTuttle/manastr-sub000/pkgs/gossipconfig"
)

type P2PHost struct {
	Host   host.Host
	Pubsub *pubsub.PubSub
	DHT    *dht.IpfsDHT
	ctx    context.Context
}

func NewP2PHost(ctx context.Context, cfg *config.Settings) (*P2PHost, error) {
	privKey, err := loadOrCreatePrivateKey(cfg.P2PPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}

	p2pPort := strconv.Itoa(cfg.P2PPort)

	opts := []libp2p.Option{
		libp2p.Identity(privKey),
		libp2p.ListenAddrStrings(
			fmt.Sprintf("/ip4/0.0.0.0/tcp/%s", p2pPort),
			fmt.Sprintf("/ip6/::/tcp/%s", p2pPort),
		),
		libp2p.DefaultMuxers,
		libp2p.DefaultTransports,
		libp2p.DefaultSecurity,
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			return dht.New(ctx, h, dht.Mode(dht.ModeClient))
		}),
		libp2p.NATPortMap(),
		libp2p.EnableAutoRelay(),
		libp2p.EnableNATService(),
	}

	// Advertise public IP if configured
	if cfg.P2PPublicIP != "" {
		publicAddr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%s", cfg.P2PPublicIP, p2pPort))
		if err == nil {
			opts = append(opts, libp2p.AddrsFactory(func(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
				return append(addrs, publicAddr)
			}))
			log.Infof("Advertising public IP: %s", cfg.P2PPublicIP)
		}
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	log.Infof("P2P Host started with peer ID: %s", h.ID())

	kademliaDHT, err := dht.New(ctx, h, dht.Mode(dht.ModeClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	if err = kademliaDHT.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap DHT: %w", err)
	}

	// All mesh participants share the same tuned parameters.
	gossipParams, peerScoreParams, peerScoreThresholds, paramHash := gossipconfig.ConfigureMatchEventsMesh(
		h.ID(), cfg.MatchEventsTopic, cfg.LootEventsTopic)
	log.Infof("Gossipsub parameter hash: %s", paramHash)

	ps, err := pubsub.NewGossipSub(
		ctx,
		h,
		pubsub.WithGossipSubParams(*gossipParams),
		pubsub.WithPeerScore(peerScoreParams, peerScoreThresholds),
		pubsub.WithFloodPublish(true),
		pubsub.WithPeerExchange(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	p2pHost := &P2PHost{
		Host:   h,
		Pubsub: ps,
		DHT:    kademliaDHT,
		ctx:    ctx,
	}

	for _, addr := range cfg.BootstrapPeers {
		if err := p2pHost.ConnectToBootstrap(addr); err != nil {
			log.WithError(err).WithField("peer", addr).Warn("Failed to connect to bootstrap peer")
		}
	}

	return p2pHost, nil
}

func (p *P2PHost) ConnectToBootstrap(bootstrapAddr string) error {
	maddr, err := multiaddr.NewMultiaddr(bootstrapAddr)
	if err != nil {
		return fmt.Errorf("invalid bootstrap address: %w", err)
	}

	peerinfo, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("failed to parse bootstrap peer info: %w", err)
	}

	if err := p.Host.Connect(p.ctx, *peerinfo); err != nil {
		return fmt.Errorf("failed to connect to bootstrap: %w", err)
	}

	log.Infof("Connected to bootstrap peer: %s", peerinfo.ID)
	return nil
}

// Close shuts down the DHT and the host.
func (p *P2PHost) Close() error {
	if err := p.DHT.Close(); err != nil {
		log.WithError(err).Warn("Failed to close DHT")
	}
	return p.Host.Close()
}

func loadOrCreatePrivateKey(privKeyHex string) (crypto.PrivKey, error) {
	if privKeyHex != "" {
		privKeyBytes, err := hex.DecodeString(privKeyHex)
		if err != nil {
			return nil, fmt.Errorf("failed to decode private key hex: %w", err)
		}
		return crypto.UnmarshalEd25519PrivateKey(privKeyBytes)
	}
	privKey, _, err := crypto.GenerateEd25519Key(nil)
	return privKey, err
}
