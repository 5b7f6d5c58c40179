package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/commitcore/internal/commitlog"
)

var (
	// ErrNotFound is returned when the server answers 404.
	ErrNotFound = errors.New("client: not found")
	// ErrUnauthorized is returned when the server answers 401 or 403.
	ErrUnauthorized = errors.New("client: unauthorized")
)

// Identity is the server signing identity.
type Identity struct {
	PublicKey string `json:"public_key"`
	Curve     string `json:"curve"`
}

// RootResult is the Merkle root of a submitted batch.
type RootResult struct {
	Root   string `json:"root"`
	CID    string `json:"cid"`
	Leaves int    `json:"leaves"`
	Depth  int    `json:"depth"`
}

// LedgerOverview summarises the commitment log.
type LedgerOverview struct {
	Entries int    `json:"entries"`
	Head    string `json:"head"`
}

// Entry is a commitment log entry as served by commitd.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Root      string    `json:"root"`
	TxCount   int       `json:"tx_count"`
	Signer    string    `json:"signer"`
	Signature string    `json:"signature"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// VerifySignature checks the entry's commitment signature locally.
func (e *Entry) VerifySignature() error {
	le := commitlog.Entry(*e)
	c, err := le.Commitment()
	if err != nil {
		return err
	}
	return c.Validate()
}

// Client is the commitcore SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the commitd server at baseURL.
//
//	c, err := client.New("https://commit.example.com",
//	    client.WithBearerToken(token),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Identity fetches the server public key.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var out Identity
	if err := c.call(ctx, http.MethodGet, "/api/v1/identity", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the server whether signature is valid for digest under
// publicKey. All three arguments are hex encoded.
func (c *Client) Verify(ctx context.Context, digest, signature, publicKey string) (bool, error) {
	req := map[string]string{
		"digest":     digest,
		"signature":  signature,
		"public_key": publicKey,
	}
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/verify", req, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// MerkleRoot computes the root of txs on the server.
func (c *Client) MerkleRoot(ctx context.Context, txs [][]byte) (*RootResult, error) {
	var out RootResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/merkle/root", batch(txs), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Commit seals txs with the server key and appends the commitment.
func (c *Client) Commit(ctx context.Context, txs [][]byte) (*Entry, error) {
	var out Entry
	if err := c.call(ctx, http.MethodPost, "/api/v1/commitments", batch(txs), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ledger returns the log length and head hash.
func (c *Client) Ledger(ctx context.Context) (*LedgerOverview, error) {
	var out LedgerOverview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLedger asks the server to walk the full chain. When the chain is
// broken, reason carries the server's description.
func (c *Client) VerifyLedger(ctx context.Context) (ok bool, reason string, err error) {
	var out struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return false, "", err
	}
	return out.Valid, out.Error, nil
}

// Entry fetches the log entry at idx.
func (c *Client) Entry(ctx context.Context, idx int) (*Entry, error) {
	var out Entry
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/entries/"+strconv.Itoa(idx), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func batch(txs [][]byte) map[string][]string {
	enc := make([]string, len(txs))
	for i, tx := range txs {
		enc[i] = hex.EncodeToString(tx)
	}
	return map[string][]string{"transactions": enc}
}

// call sends a JSON request and decodes the JSON response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
