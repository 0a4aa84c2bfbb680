package mediatoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "lawlink-chat/pkg/errors"
)

// Client exchanges an auth token for a room-scoped media credential at the
// token service. The credential is single-use: the media session consumes it
// on join and it cannot authorize a second attempt.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a media token client against the service at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type exchangeRequest struct {
	Kind string `json:"kind"`
}

type exchangeResponse struct {
	Token string `json:"token"`
}

// Exchange obtains a media credential for one call attempt in a room
func (c *Client) Exchange(ctx context.Context, roomID, kind, authToken string) (string, error) {
	body, err := json.Marshal(exchangeRequest{Kind: kind})
	if err != nil {
		return "", pkgerrors.CredentialError("encoding exchange request", err)
	}

	url := fmt.Sprintf("%s/rooms/%s/media-token", c.baseURL, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.CredentialError("building exchange request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", pkgerrors.CredentialError("media token exchange failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.CredentialError(fmt.Sprintf("media token exchange returned %d", resp.StatusCode), nil)
	}

	var out exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", pkgerrors.CredentialError("decoding exchange response", err)
	}
	if out.Token == "" {
		return "", pkgerrors.CredentialError("token service returned an empty credential", nil)
	}
	return out.Token, nil
}
