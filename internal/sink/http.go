package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/docjournal/internal/journal"
)

// HTTPSink publishes entries to a key-value HTTP store, one key per entry
// under kv/<mod>/journals/<id>.
type HTTPSink struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPSink(baseURL, apiKey string) *HTTPSink {
	return &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EntryKey is the store key for one entry.
func EntryKey(modID, entryID string) string {
	return url.PathEscape(modID) + "/journals/" + url.PathEscape(entryID)
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value  *journal.Entry `json:"value"`
	Source string         `json:"source,omitempty"`
}

func (s *HTTPSink) Publish(ctx context.Context, pub Publication) error {
	if err := pub.Validate(); err != nil {
		return err
	}
	for _, e := range pub.Entries {
		if err := s.PutEntry(ctx, pub.ModID, e); err != nil {
			return err
		}
	}
	return nil
}

// PutEntry stores or replaces one entry.
func (s *HTTPSink) PutEntry(ctx context.Context, modID string, e *journal.Entry) error {
	key := EntryKey(modID, e.ID)
	body, err := json.Marshal(nodeRequest{Value: e, Source: "docjournal"})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Key: key, Code: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// StatusError is a non-success response from the store.
type StatusError struct {
	Key  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("put entry %s: status %d: %s", e.Key, e.Code, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Close releases idle connections.
func (s *HTTPSink) Close() {
	s.httpClient.CloseIdleConnections()
}
