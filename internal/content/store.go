// ==============================================
// File: internal/content/store.go
// ==============================================
// Package content uploads token metadata and logo images to nft.storage
// and returns content-addressed gateway URIs.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultEndpoint = "https://api.nft.storage"

// StoreConfig configures the content store client.
type StoreConfig struct {
	APIKey   string
	Endpoint string // defaults to the public nft.storage API
}

// Store is the content-store client.
type Store struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// TokenMetadata is the off-chain metadata document the mint's URI points at.
type TokenMetadata struct {
	Name                 string `json:"name"`
	Symbol               string `json:"symbol"`
	Description          string `json:"description"`
	SellerFeeBasisPoints uint16 `json:"seller_fee_basis_points"`
	Image                string `json:"image,omitempty"`
}

type uploadResponse struct {
	Ok    bool `json:"ok"`
	Value struct {
		Cid string `json:"cid"`
	} `json:"value"`
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewStore(cfg StoreConfig, logger *zap.Logger) *Store {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Store{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Named("content"),
	}
}

// UploadTokenMetadata pushes the metadata document and returns its gateway
// URI.
func (s *Store) UploadTokenMetadata(ctx context.Context, meta TokenMetadata) (string, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return s.upload(ctx, body, "application/json")
}

// UploadImage pushes raw image bytes and returns their gateway URI.
func (s *Store) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	return s.upload(ctx, data, contentType)
}

func (s *Store) upload(ctx context.Context, body []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/upload", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !result.Ok {
		return "", fmt.Errorf("upload rejected (status %d): %s", resp.StatusCode, result.Error.Message)
	}
	if result.Value.Cid == "" {
		return "", fmt.Errorf("upload response missing cid")
	}

	uri := fmt.Sprintf("https://%s.ipfs.nftstorage.link", result.Value.Cid)
	s.logger.Debug("content uploaded",
		zap.String("cid", result.Value.Cid),
		zap.Int("bytes", len(body)))
	return uri, nil
}
