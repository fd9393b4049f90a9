package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

// Generator is the external content-generation collaborator: given a prompt
// it returns draft post fields. Only the CRUD surface consumes it; the
// dispatch engine never touches it.
type Generator interface {
	GenerateDrafts(ctx context.Context, prompt string, count int) ([]transfer.PostCreation, error)
}

type httpGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string) Generator {
	return &httpGenerator{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type generateResponse struct {
	Drafts []transfer.PostCreation `json:"drafts"`
}

func (g *httpGenerator) GenerateDrafts(ctx context.Context, prompt string, count int) ([]transfer.PostCreation, error) {
	if count <= 0 {
		count = 1
	}

	body, err := json.Marshal(transfer.GenerateRequest{Prompt: prompt, Count: count})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding generator response: %w", err)
	}
	return out.Drafts, nil
}
