package printing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public PrintNode API.
const DefaultBaseURL = "https://api.printnode.com"

var ErrUnauthorized = errors.New("printnode rejected the api key")

// Printer is a PrintNode printer as listed to admins.
type Printer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
	Computer    string `json:"computer"`
}

// Job is one raw print job.
type Job struct {
	PrinterID int64
	Title     string
	Content   string
	Copies    int
}

// Client talks to the PrintNode REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client. PrintNode allows roughly ten requests per
// second per account; the limiter keeps us under that.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

type printJobRequest struct {
	PrinterID   int64           `json:"printerId"`
	Title       string          `json:"title"`
	ContentType string          `json:"contentType"`
	Content     string          `json:"content"`
	Source      string          `json:"source"`
	Options     printJobOptions `json:"options"`
}

type printJobOptions struct {
	Copies int `json:"copies,omitempty"`
}

// Submit sends a raw text job and returns PrintNode's job id.
func (c *Client) Submit(ctx context.Context, apiKey string, job Job) (int64, error) {
	body, err := json.Marshal(printJobRequest{
		PrinterID:   job.PrinterID,
		Title:       job.Title,
		ContentType: "raw_base64",
		Content:     base64.StdEncoding.EncodeToString([]byte(job.Content)),
		Source:      "tablekiosk",
		Options:     printJobOptions{Copies: job.Copies},
	})
	if err != nil {
		return 0, err
	}

	var id int64
	if err := c.do(ctx, apiKey, http.MethodPost, "/printjobs", body, &id); err != nil {
		return 0, fmt.Errorf("submit print job: %w", err)
	}
	return id, nil
}

type printerResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
	Computer    struct {
		Name string `json:"name"`
	} `json:"computer"`
}

// Printers lists the printers visible to the API key.
func (c *Client) Printers(ctx context.Context, apiKey string) ([]Printer, error) {
	var raw []printerResponse
	if err := c.do(ctx, apiKey, http.MethodGet, "/printers", nil, &raw); err != nil {
		return nil, fmt.Errorf("list printers: %w", err)
	}
	out := make([]Printer, len(raw))
	for i, p := range raw {
		out[i] = Printer{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			State:       p.State,
			Computer:    p.Computer.Name,
		}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > 500 {
			msg = msg[:500]
		}
		if msg == "" {
			return fmt.Errorf("printnode returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("printnode returned status %d: %s", resp.StatusCode, msg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
