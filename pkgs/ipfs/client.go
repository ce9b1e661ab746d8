// Package ipfs wraps the kubo RPC client for storing and retrieving
// archived match records.
package ipfs

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	files "github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/path"
	"github.com/ipfs/go-cid"
	ipfsApi "github.com/ipfs/kubo/client/rpc"
	caopts "github.com/ipfs/kubo/core/coreiface/options"
	log "github.com/sirupsen/logrus"
)

// Client wraps the IPFS kubo client.
type Client struct {
	api *ipfsApi.HttpApi
}

// NewClient creates a new IPFS client. Accepts a multiaddr, a plain
// host:port, or a full http URL.
func NewClient(apiURL string) (*Client, error) {
	if apiURL == "" {
		apiURL = "127.0.0.1:5001"
	}

	if strings.HasPrefix(apiURL, "/ip4/") || strings.HasPrefix(apiURL, "/dns/") {
		// Convert multiaddr: /ip4/172.29.0.2/tcp/5001 -> http://172.29.0.2:5001
		parts := strings.Split(apiURL, "/")
		if len(parts) >= 5 {
			host := parts[2]
			port := parts[4]
			apiURL = fmt.Sprintf("http://%s:%s", host, port)
		}
	} else if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		apiURL = "http://" + apiURL
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: true,
		},
	}

	api, err := ipfsApi.NewURLApiWithClient(apiURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create IPFS client: %w", err)
	}

	return &Client{
		api: api,
	}, nil
}

// StoreMatchArchive stores a serialized match archive in IPFS and returns
// the CID. Content is pinned.
func (c *Client) StoreMatchArchive(ctx context.Context, data []byte) (string, error) {
	reader := bytes.NewReader(data)

	p, err := c.api.Unixfs().Add(ctx, files.NewReaderFile(reader), func(settings *caopts.UnixfsAddSettings) error {
		settings.CidVersion = 1
		settings.Chunker = "size-262144"
		settings.Pin = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to add to IPFS: %w", err)
	}

	cidStr := p.String()
	log.Infof("Stored match archive in IPFS: %s", cidStr)

	return cidStr, nil
}

// RetrieveMatchArchive retrieves an archived match from IPFS by CID.
func (c *Client) RetrieveMatchArchive(ctx context.Context, cidStr string) ([]byte, error) {
	parsedCID, err := cid.Parse(cidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CID %s: %w", cidStr, err)
	}

	ipfsPath := path.FromCid(parsedCID)
	node, err := c.api.Unixfs().Get(ctx, ipfsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get from IPFS: %w", err)
	}

	file := files.ToFile(node)
	if file == nil {
		return nil, fmt.Errorf("expected file from IPFS")
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	return buf.Bytes(), nil
}

// IsAvailable checks if the IPFS node is accessible.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.api.Key().Self(ctx)
	return err == nil
}
