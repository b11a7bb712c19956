package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultAPIBase is the Pinata API base URL.
	DefaultAPIBase = "https://api.pinata.cloud"

	// DefaultGateway is the public gateway used to resolve CIDs.
	DefaultGateway = "https://gateway.pinata.cloud/ipfs/"

	// MaxBlobResponseSize caps gateway response bodies (1 GB) to prevent
	// memory exhaustion from a misbehaving endpoint.
	MaxBlobResponseSize = 1 << 30
)

// ClientConfig holds pinning service credentials and endpoints.
type ClientConfig struct {
	APIKey    string
	SecretKey string
	APIBase   string // empty = DefaultAPIBase
	Gateway   string // empty = DefaultGateway
}

// ConfigFromEnv loads credentials from PINATA_API_KEY, PINATA_SECRET and
// optionally IPFS_GATEWAY.
func ConfigFromEnv() (ClientConfig, error) {
	cfg := ClientConfig{
		APIKey:    os.Getenv("PINATA_API_KEY"),
		SecretKey: os.Getenv("PINATA_SECRET"),
		Gateway:   os.Getenv("IPFS_GATEWAY"),
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return ClientConfig{}, fmt.Errorf("%w: PINATA_API_KEY and PINATA_SECRET must be set", ErrMissingCredentials)
	}
	return cfg, nil
}

// PinningClient talks to a Pinata-compatible pinning service over HTTPS.
// It maintains a pooled HTTP client; all requests honor the caller's context.
type PinningClient struct {
	apiKey    string
	secretKey string
	apiBase   string
	gateway   string
	client    *http.Client
	log       *logrus.Logger
}

// Compile-time interface check.
var _ BlobStore = (*PinningClient)(nil)

// NewPinningClient creates a client from cfg. log may be nil.
func NewPinningClient(cfg ClientConfig, log *logrus.Logger) *PinningClient {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	gateway := cfg.Gateway
	if gateway == "" {
		gateway = DefaultGateway
	}
	return &PinningClient{
		apiKey:    cfg.APIKey,
		secretKey: cfg.SecretKey,
		apiBase:   strings.TrimRight(apiBase, "/"),
		gateway:   gateway,
		log:       log,
		client: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// pinResponse is the pinFileToIPFS success body.
type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// pinListResponse is the data/pinList success body.
type pinListResponse struct {
	Rows []struct {
		IpfsPinHash string `json:"ipfs_pin_hash"`
	} `json:"rows"`
}

// Put uploads data to the pinning service and returns the IPFS CID.
func (c *PinningClient) Put(ctx context.Context, data []byte, name string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	if name == "" {
		name = "prism-" + uuid.NewString() + ".enc"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("ipfs: build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("ipfs: build multipart: %w", err)
	}
	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("ipfs: build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("ipfs: build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", fmt.Errorf("ipfs: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError("pin", resp)
	}

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("%w: decode pin response: %w", ErrInvalidResponse, err)
	}
	if pr.IpfsHash == "" {
		return "", fmt.Errorf("%w: empty IpfsHash", ErrInvalidResponse)
	}

	c.log.WithFields(logrus.Fields{"cid": pr.IpfsHash, "name": name, "size": len(data)}).Info("pinned blob")
	return pr.IpfsHash, nil
}

// Get downloads content by CID from the gateway.
func (c *PinningClient) Get(ctx context.Context, cid string) ([]byte, error) {
	if cid == "" {
		return nil, ErrInvalidCID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gateway+cid, nil)
	if err != nil {
		return nil, fmt.Errorf("ipfs: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	case resp.StatusCode != http.StatusOK:
		return nil, c.statusError("get", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBlobResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrStoreUnavailable, err)
	}

	c.log.WithFields(logrus.Fields{"cid": cid, "size": len(data)}).Debug("fetched blob")
	return data, nil
}

// Unpin removes the pin for a CID.
func (c *PinningClient) Unpin(ctx context.Context, cid string) error {
	if cid == "" {
		return ErrInvalidCID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.apiBase+"/pinning/unpin/"+cid, nil)
	if err != nil {
		return fmt.Errorf("ipfs: create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.log.WithField("cid", cid).Info("unpinned blob")
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, cid)
	default:
		return c.statusError("unpin", resp)
	}
}

// List returns the CIDs of all pinned blobs.
func (c *PinningClient) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/data/pinList?status=pinned&pageLimit=100", nil)
	if err != nil {
		return nil, fmt.Errorf("ipfs: create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("list", resp)
	}

	var lr pinListResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("%w: decode pin list: %w", ErrInvalidResponse, err)
	}

	cids := make([]string, 0, len(lr.Rows))
	for _, row := range lr.Rows {
		cids = append(cids, row.IpfsPinHash)
	}
	return cids, nil
}

// TestAuth checks whether the API accepts our credentials.
func (c *PinningClient) TestAuth(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/data/testAuthentication", nil)
	if err != nil {
		return false, fmt.Errorf("ipfs: create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK, nil
}

// setAuth attaches the Pinata credential headers.
func (c *PinningClient) setAuth(req *http.Request) {
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secretKey)
}

// statusError maps an HTTP failure status to the package error taxonomy.
func (c *PinningClient) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrAuthFailed
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		sentinel = ErrQuotaExceeded
	default:
		sentinel = ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %s: HTTP %d: %s", sentinel, op, resp.StatusCode, strings.TrimSpace(string(body)))
}
