// Package chefs exports badger sighting submissions from the CHEFS forms
// service (https://submit.digital.gov.bc.ca).
package chefs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds connection settings for the CHEFS API.
type Config struct {
	// BaseURL is the forms API root, e.g.
	// https://submit.digital.gov.bc.ca/app/api/v1/forms
	BaseURL string
	// FormID identifies the form; it doubles as the basic-auth username.
	FormID string
	// APIKey is the form's API key (basic-auth password).
	APIKey string
	// VersionIDs are the published form versions to export.
	VersionIDs []string
	// Fields restricts exported submission fields.
	Fields []string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client fetches form submissions.
type Client struct {
	baseURL    string
	formID     string
	versionIDs []string
	fields     []string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a CHEFS client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if cfg.FormID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("form ID and API key required")
	}
	if len(cfg.VersionIDs) == 0 {
		return nil, fmt.Errorf("at least one form version ID required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hash := base64.StdEncoding.EncodeToString([]byte(cfg.FormID + ":" + cfg.APIKey))
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		formID:     cfg.FormID,
		versionIDs: cfg.VersionIDs,
		fields:     cfg.Fields,
		authHeader: "Basic " + hash,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// submissionMeta is an entry from GET /{form}/submissions.
type submissionMeta struct {
	SubmissionID   string `json:"submissionId"`
	ConfirmationID string `json:"confirmationId"`
	CreatedAt      string `json:"createdAt"`
	Deleted        bool   `json:"deleted"`
}

// Submission is one exported form submission joined with its metadata.
type Submission struct {
	// ID is the CHEFS submission id.
	ID string
	// ConfirmationID is the user-facing confirmation code.
	ConfirmationID string
	// CreatedAt is the submission time in UTC.
	CreatedAt time.Time
	// Fields holds the exported answer fields keyed by field name.
	Fields map[string]any
}

// String returns the named answer field as a string, or "".
func (s Submission) String(key string) string {
	v, ok := s.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

// Float returns the named answer field as a float64.
func (s Submission) Float(key string) (float64, bool) {
	switch v := s.Fields[key].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Submissions exports all submissions across the configured form versions,
// joined with submission metadata for the confirmation id and creation time.
// Submissions flagged deleted are skipped, as are exported rows with no
// matching metadata.
func (c *Client) Submissions(ctx context.Context) ([]Submission, error) {
	meta, err := c.listMeta(ctx)
	if err != nil {
		return nil, err
	}
	metaByID := make(map[string]submissionMeta, len(meta))
	for _, m := range meta {
		metaByID[m.SubmissionID] = m
	}

	var submissions []Submission
	for _, versionID := range c.versionIDs {
		rows, err := c.discover(ctx, versionID)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Exported CHEFS form version",
			"version", versionID,
			"rows", len(rows))

		for _, row := range rows {
			id, _ := row["id"].(string)
			m, ok := metaByID[id]
			if !ok || m.Deleted {
				continue
			}

			createdAt, err := time.Parse(time.RFC3339, m.CreatedAt)
			if err != nil {
				c.logger.Warn("Skipping submission with unparseable createdAt",
					"submission", id,
					"createdAt", m.CreatedAt)
				continue
			}

			fields := make(map[string]any, len(row))
			for k, v := range row {
				fields[k] = v
			}
			submissions = append(submissions, Submission{
				ID:             id,
				ConfirmationID: m.ConfirmationID,
				CreatedAt:      createdAt.UTC(),
				Fields:         fields,
			})
		}
	}
	return submissions, nil
}

// listMeta fetches submission metadata for the whole form.
func (c *Client) listMeta(ctx context.Context) ([]submissionMeta, error) {
	endpoint := fmt.Sprintf("%s/%s/submissions", c.baseURL, c.formID)
	var meta []submissionMeta
	if err := c.getJSON(ctx, endpoint, nil, &meta); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return meta, nil
}

// discover exports the answer fields for one form version.
func (c *Client) discover(ctx context.Context, versionID string) ([]map[string]any, error) {
	endpoint := fmt.Sprintf("%s/%s/versions/%s/submissions/discover", c.baseURL, c.formID, versionID)
	params := url.Values{}
	if len(c.fields) > 0 {
		params.Set("fields", strings.Join(c.fields, ","))
	}

	var rows []map[string]any
	if err := c.getJSON(ctx, endpoint, params, &rows); err != nil {
		return nil, fmt.Errorf("export version %s: %w", versionID, err)
	}
	return rows, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	operation := func() error {
		reqURL := endpoint
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", c.authHeader)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
