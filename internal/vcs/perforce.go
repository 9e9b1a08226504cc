package vcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

// PerforceHost opens reviews through the Helix Swarm REST API.
type PerforceHost struct {
	swarmURL   string
	user       string
	ticket     string
	httpClient *http.Client
}

// NewPerforceHost returns a host for the Swarm instance at swarmURL. The
// ticket is a Perforce login ticket, used as the basic auth password.
func NewPerforceHost(swarmURL, user, ticket string) (*PerforceHost, error) {
	if swarmURL == "" {
		return nil, errors.New("SWARM_URL is required")
	}
	if user == "" || ticket == "" {
		return nil, errors.New("P4USER and P4TICKET must be set")
	}
	return &PerforceHost{
		swarmURL:   strings.TrimRight(swarmURL, "/"),
		user:       user,
		ticket:     ticket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SearchCode is not supported by Swarm and always returns no paths.
func (h *PerforceHost) SearchCode(context.Context, []string) ([]string, error) {
	return nil, nil
}

type swarmReviewResponse struct {
	Review struct {
		ID int64 `json:"id"`
	} `json:"review"`
}

// CreateReview posts the description and file list to Swarm and returns the
// review URL.
func (h *PerforceHost) CreateReview(ctx context.Context, req ReviewRequest) (string, error) {
	form := url.Values{}
	form.Set("description", fmt.Sprintf("Fix: %s\n\n%s: Automated fix", req.Summary, req.BugKey))
	for _, f := range slices.Sorted(maps.Keys(req.Fix)) {
		form.Add("files[]", f)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.swarmURL+"/api/v9/reviews", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(h.user, h.ticket)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to create Swarm review: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Swarm response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to create Swarm review: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out swarmReviewResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode Swarm response: %w", err)
	}
	if out.Review.ID == 0 {
		return "", errors.New("failed to create Swarm review: response has no review id")
	}

	reviewURL := fmt.Sprintf("%s/reviews/%d", h.swarmURL, out.Review.ID)
	clog.FromContext(ctx).Infof("Created Swarm review %s", reviewURL)
	return reviewURL, nil
}

var _ ReviewHost = (*PerforceHost)(nil)
