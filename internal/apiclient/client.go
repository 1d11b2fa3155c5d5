// Package apiclient is the HTTP client for the Bedel backend API. The
// conversation core consumes it for ticket storage and FAQ lookups.
package apiclient

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
)

// DefaultTimeout bounds every backend call so a slow backend can never hang
// a user-facing task.
const DefaultTimeout = 15 * time.Second

// Client talks to the Bedel backend API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Opts holds parameters for creating a Client.
type Opts struct {
	BaseURL string
	Timeout time.Duration // defaults to DefaultTimeout
}

// New creates a Client.
func New(opts Opts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

// TicketSubmission is the payload for creating a ticket.
type TicketSubmission struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	Description string `json:"description"`
	Category    string `json:"category"`
	StudentID   string `json:"student_id,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Source      string `json:"source"`
}

// TicketReceipt is the backend's answer to a successful submission.
type TicketReceipt struct {
	Ref     string
	Status  string
	Message string
}

// Ticket is a stored ticket as returned by the list/get surface.
type Ticket struct {
	Ref         string `json:"ref"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// FAQMatch is a knowledge-base lookup result.
type FAQMatch struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// CreateTicket submits a new support ticket. Any non-201 response or
// transport failure is returned as an error.
func (c *Client) CreateTicket(ctx context.Context, sub TicketSubmission) (*TicketReceipt, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("apiclient: marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tickets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("apiclient: create ticket: %s", readError(resp))
	}

	var out struct {
		Ticket struct {
			Ref    string `json:"ref"`
			Status string `json:"status"`
		} `json:"ticket"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("apiclient: decode ticket response: %w", err)
	}
	return &TicketReceipt{
		Ref:     out.Ticket.Ref,
		Status:  out.Ticket.Status,
		Message: out.Message,
	}, nil
}

// BestFAQ queries the knowledge base for the best match. Returns (nil, nil)
// when the backend has no match; an empty result is not an error.
func (c *Client) BestFAQ(ctx context.Context, query, subject string) (*FAQMatch, error) {
	params := url.Values{"query": {query}}
	if subject != "" {
		params.Set("subject", subject)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/faqs?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: query faqs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apiclient: query faqs: %s", readError(resp))
	}

	var out struct {
		FAQ FAQMatch `json:"faq"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("apiclient: decode faq response: %w", err)
	}
	return &out.FAQ, nil
}

// OpenTickets lists tickets currently in the open state. Used by the daily
// digest.
func (c *Client) OpenTickets(ctx context.Context) ([]Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tickets?status=abierto", nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: list tickets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apiclient: list tickets: %s", readError(resp))
	}

	var out struct {
		Tickets []Ticket `json:"tickets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("apiclient: decode ticket list: %w", err)
	}
	return out.Tickets, nil
}

// Health verifies the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("apiclient: health: status %d", resp.StatusCode)
	}
	return nil
}

// readError extracts the backend's error field, falling back to the status
// code when the body is not the expected shape.
func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Sprintf("status %d: %s", resp.StatusCode, e.Error)
		}
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
