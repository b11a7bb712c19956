package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
)

// Client is a JSON-RPC client for a remote ledger node. Each mutation
// carries the caller's address and a DER signature over the same
// canonical digest a local ledger verifies, so the node can attribute
// the call without ever seeing key material.
type Client struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Int64
}

// Compile-time interface check.
var _ Service = (*Client)(nil)

// ClientConfig holds the remote ledger endpoint and optional Basic
// Auth credentials.
type ClientConfig struct {
	URL      string
	User     string
	Password string
}

// NewClient creates a JSON-RPC ledger client. The client uses HTTP
// Basic Auth when User is non-empty and maintains a connection pool.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcErrorCode values mirror the package sentinels so remote failures
// keep their taxonomy across the wire.
const (
	codeAlreadyRegistered = 1001
	codeNotRegistered     = 1002
	codeNoData            = 1003
	codePointerNotFound   = 1004
	codeNotAuthorized     = 1005
	codeInvalidTransition = 1006
	codeInvalidSignature  = 1007
)

// mutationParams is the common envelope for attributed calls.
type mutationParams struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature"`
}

// call invokes a JSON-RPC method, decoding the result into result
// when non-nil.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("ledger: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}
	if rpcResp.Error != nil {
		return remoteError(rpcResp.Error)
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// remoteError maps an RPC error code back to the package sentinel.
func remoteError(e *rpcError) error {
	var sentinel error
	switch e.Code {
	case codeAlreadyRegistered:
		sentinel = ErrAlreadyRegistered
	case codeNotRegistered:
		sentinel = ErrNotRegistered
	case codeNoData:
		sentinel = ErrNoData
	case codePointerNotFound:
		sentinel = ErrPointerNotFound
	case codeNotAuthorized:
		sentinel = ErrNotAuthorized
	case codeInvalidTransition:
		sentinel = ErrInvalidTransition
	case codeInvalidSignature:
		sentinel = identity.ErrInvalidSignature
	default:
		return fmt.Errorf("ledger: rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, e.Message)
}

// sign produces the mutation envelope for a call. The node verifies
// the signature against the same canonical digest a local ledger uses.
func sign(caller identity.Signer, op string, fields ...string) (mutationParams, error) {
	if caller == nil {
		return mutationParams{}, ErrNilSigner
	}
	addr := caller.Address()
	if !addr.Valid() {
		return mutationParams{}, ErrInvalidAddress
	}
	sig, err := caller.Sign(mutationDigest(op, addr, fields...))
	if err != nil {
		return mutationParams{}, err
	}
	return mutationParams{Caller: string(addr), Signature: hex.EncodeToString(sig)}, nil
}

// --- mutations ---

func (c *Client) RegisterOwner(ctx context.Context, caller identity.Signer) error {
	env, err := sign(caller, "registerOwner")
	if err != nil {
		return err
	}
	return c.call(ctx, "ledger.registerOwner", []interface{}{env}, nil)
}

func (c *Client) PublishPointer(ctx context.Context, caller identity.Signer, contentID string, fp fingerprint.Digest) error {
	env, err := sign(caller, "publishPointer", contentID, fp.Hex())
	if err != nil {
		return err
	}
	params := struct {
		mutationParams
		ContentID   string `json:"content_id"`
		Fingerprint string `json:"fingerprint"`
	}{env, contentID, fp.Hex()}
	return c.call(ctx, "ledger.publishPointer", []interface{}{params}, nil)
}

func (c *Client) RequestAccess(ctx context.Context, caller identity.Signer, owner identity.Address) error {
	env, err := sign(caller, "requestAccess", string(owner))
	if err != nil {
		return err
	}
	params := struct {
		mutationParams
		Owner string `json:"owner"`
	}{env, string(owner)}
	return c.call(ctx, "ledger.requestAccess", []interface{}{params}, nil)
}

func (c *Client) ApproveAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return c.grantCall(ctx, caller, requester, "approveAccess", "ledger.approveAccess")
}

func (c *Client) RevokeAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return c.grantCall(ctx, caller, requester, "revokeAccess", "ledger.revokeAccess")
}

func (c *Client) grantCall(ctx context.Context, caller identity.Signer, requester identity.Address, op, method string) error {
	env, err := sign(caller, op, string(requester))
	if err != nil {
		return err
	}
	params := struct {
		mutationParams
		Requester string `json:"requester"`
	}{env, string(requester)}
	return c.call(ctx, method, []interface{}{params}, nil)
}

// --- reads ---

func (c *Client) IsOwner(ctx context.Context, addr identity.Address) (bool, error) {
	var registered bool
	err := c.call(ctx, "ledger.isOwner", []interface{}{string(addr)}, &registered)
	return registered, err
}

func (c *Client) CheckAccess(ctx context.Context, owner, requester identity.Address) (bool, error) {
	var approved bool
	err := c.call(ctx, "ledger.checkAccess", []interface{}{string(owner), string(requester)}, &approved)
	return approved, err
}

func (c *Client) GrantState(ctx context.Context, owner, requester identity.Address) (GrantStatus, error) {
	var status int
	err := c.call(ctx, "ledger.grantState", []interface{}{string(owner), string(requester)}, &status)
	return GrantStatus(status), err
}

// wirePointer is the JSON form of a record pointer.
type wirePointer struct {
	ContentID   string    `json:"content_id"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p wirePointer) toPointer() (RecordPointer, error) {
	fp, err := fingerprint.Parse(p.Fingerprint)
	if err != nil {
		return RecordPointer{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return RecordPointer{ContentID: p.ContentID, Fingerprint: fp, UpdatedAt: p.UpdatedAt}, nil
}

func (c *Client) ReadPointer(ctx context.Context, owner, caller identity.Address) (*RecordPointer, error) {
	var wp wirePointer
	if err := c.call(ctx, "ledger.readPointer", []interface{}{string(owner), string(caller)}, &wp); err != nil {
		return nil, err
	}
	ptr, err := wp.toPointer()
	if err != nil {
		return nil, err
	}
	return &ptr, nil
}

func (c *Client) PointerHistory(ctx context.Context, owner identity.Address) ([]RecordPointer, error) {
	var wps []wirePointer
	if err := c.call(ctx, "ledger.pointerHistory", []interface{}{string(owner)}, &wps); err != nil {
		return nil, err
	}
	ptrs := make([]RecordPointer, 0, len(wps))
	for _, wp := range wps {
		ptr, err := wp.toPointer()
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, ptr)
	}
	return ptrs, nil
}

// wireEvent is the JSON form of an audit event.
type wireEvent struct {
	Seq         uint64    `json:"seq"`
	Type        int       `json:"type"`
	Owner       string    `json:"owner"`
	Requester   string    `json:"requester,omitempty"`
	ContentID   string    `json:"content_id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var wes []wireEvent
	if err := c.call(ctx, "ledger.events", []interface{}{}, &wes); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(wes))
	for _, we := range wes {
		events = append(events, Event{
			Seq:         we.Seq,
			Type:        EventType(we.Type),
			Owner:       identity.Address(we.Owner),
			Requester:   identity.Address(we.Requester),
			ContentID:   we.ContentID,
			Fingerprint: we.Fingerprint,
			Timestamp:   we.Timestamp,
		})
	}
	return events, nil
}
