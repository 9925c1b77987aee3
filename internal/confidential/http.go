package confidential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

// HTTPCodec talks to a covalidator over its JSON API.
type HTTPCodec struct {
	BaseURL string
	HTTP    *http.Client
	logger  *logrus.Logger
	now     func() time.Time
}

type HTTPCodecConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *logrus.Logger
}

func NewHTTPCodec(cfg HTTPCodecConfig) *HTTPCodec {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPCodec{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		HTTP:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("covalidator http %d", e.StatusCode)
	}
	return fmt.Sprintf("covalidator http %d: %s", e.StatusCode, b)
}

type encryptRequest struct {
	Plaintext string `json:"plaintext"`
	InputType uint8  `json:"input_type"`
}

type encryptResponse struct {
	Ciphertext string `json:"ciphertext"`
}

type decryptRequest struct {
	Handles   []string `json:"handles"`
	Address   string   `json:"address"`
	Message   string   `json:"message"`
	Signature string   `json:"signature"`
}

type decryptResponse struct {
	Plaintexts []string `json:"plaintexts"`
}

func (c *HTTPCodec) Encrypt(ctx context.Context, plaintext *big.Int) (Ciphertext, error) {
	if plaintext == nil || plaintext.Sign() < 0 {
		return nil, fmt.Errorf("encrypt: plaintext must be a non-negative integer")
	}

	var out encryptResponse
	req := encryptRequest{Plaintext: plaintext.String(), InputType: constants.InputType}
	if err := c.post(ctx, "/encrypt", req, &out); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ParseCiphertext(out.Ciphertext)
}

func (c *HTTPCodec) Decrypt(ctx context.Context, handles []Handle, auth Authorizer) ([]*big.Int, error) {
	if auth == nil {
		return nil, wallet.ErrMissingSigner
	}
	if len(handles) == 0 {
		return []*big.Int{}, nil
	}

	ids := make([]string, len(handles))
	for i, h := range handles {
		ids[i] = h.String()
	}
	address := auth.PublicKey().String()
	msg := AttestationMessage(address, ids, c.now())

	sig, err := auth.SignMessage([]byte(msg))
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	var out decryptResponse
	req := decryptRequest{
		Handles:   ids,
		Address:   address,
		Message:   msg,
		Signature: base58.Encode(sig),
	}
	if err := c.post(ctx, "/decrypt", req, &out); err != nil {
		if he, ok := err.(*HTTPError); ok && (he.StatusCode == http.StatusForbidden || he.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %s", ErrDecryptionDenied, he.Error())
		}
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	if len(out.Plaintexts) != len(handles) {
		return nil, fmt.Errorf("decrypt: expected %d plaintexts, got %d", len(handles), len(out.Plaintexts))
	}
	plain := make([]*big.Int, len(out.Plaintexts))
	for i, p := range out.Plaintexts {
		v, ok := new(big.Int).SetString(strings.TrimSpace(p), 10)
		if !ok {
			return nil, fmt.Errorf("decrypt: plaintext %d is not an integer", i)
		}
		plain[i] = v
	}

	c.logger.WithFields(logrus.Fields{
		"handles": len(handles),
		"address": address,
	}).Debug("attested decrypt ok")

	return plain, nil
}

// AttestationMessage is the text a wallet signs to authorize a decrypt.
func AttestationMessage(address string, handles []string, at time.Time) string {
	return fmt.Sprintf("attested-decrypt\naddress: %s\nhandles: %s\nissued_at: %d",
		address, strings.Join(handles, ","), at.Unix())
}

func (c *HTTPCodec) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: data}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode covalidator response: %w", err)
	}
	return nil
}
