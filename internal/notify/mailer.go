package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agendacal/internal/domain"
)

const defaultTimeout = 30 * time.Second

// HTTPMailer talks to the notification service: POST to send participant
// notifications, GET (same endpoint, same credential) to read the
// participant directory.
type HTTPMailer struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPMailer(url string, timeout time.Duration) *HTTPMailer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPMailer{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Send posts the notification payload with the principal's bearer
// credential. Any non-2xx status is a failure for the caller to log.
func (m *HTTPMailer) Send(ctx context.Context, req Request) Result {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return Result{Error: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return Result{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	return Result{StatusCode: resp.StatusCode, Duration: time.Since(start)}
}

type directoryResponse struct {
	Users []domain.Participant `json:"users"`
}

// FetchDirectory reads the participant directory from the notification
// service endpoint.
func (m *HTTPMailer) FetchDirectory(ctx context.Context, token string) ([]domain.Participant, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodGet, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch directory: status %d", resp.StatusCode)
	}

	var payload directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	return payload.Users, nil
}

// ServiceDirectory adapts an HTTPMailer plus a fixed service credential into
// the directory interface the engine consumes.
type ServiceDirectory struct {
	mailer *HTTPMailer
	token  string
}

func NewServiceDirectory(mailer *HTTPMailer, token string) *ServiceDirectory {
	return &ServiceDirectory{mailer: mailer, token: token}
}

func (d *ServiceDirectory) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	return d.mailer.FetchDirectory(ctx, d.token)
}
