package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lawlink-chat/internal/domain"
	pkgerrors "lawlink-chat/pkg/errors"
	"lawlink-chat/pkg/metrics"
)

// Loader fetches the durable message list for a room from the message store's
// REST surface. One-shot: it never pushes updates; a caller that wants fresh
// data calls it again.
type Loader struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewLoader creates a Loader against the store at baseURL
func NewLoader(baseURL, authToken string) *Loader {
	return &Loader{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Messages returns the room's messages ordered by ascending created_at.
// An empty or missing room yields an empty list, not an error.
func (l *Loader) Messages(ctx context.Context, roomID string) ([]domain.Message, error) {
	start := time.Now()

	var messages []domain.Message
	err := l.get(ctx, fmt.Sprintf("%s/rooms/%s/messages", l.baseURL, roomID), &messages)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.ErrCodeRoomNotFound) {
			return []domain.Message{}, nil
		}
		return nil, err
	}

	metrics.HistoryFetchDuration.Observe(time.Since(start).Seconds())
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Room returns the room's metadata, including its participants
func (l *Loader) Room(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	if err := l.get(ctx, fmt.Sprintf("%s/rooms/%s", l.baseURL, roomID), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (l *Loader) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInternal, "building history request", err)
	}
	if l.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+l.authToken)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return pkgerrors.TransportError("history fetch failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeInternal, "decoding history response", err)
		}
		return nil
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.ErrCodeRoomNotFound, "room not found")
	case http.StatusUnauthorized:
		return pkgerrors.UnauthorizedError("history fetch rejected")
	default:
		return pkgerrors.TransportError(fmt.Sprintf("history fetch returned %d", resp.StatusCode), nil)
	}
}
