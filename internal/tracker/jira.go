// Package tracker talks to the Jira issue tracker: it lists open bugs over the
// REST API and receives bug events over a WebSocket.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Issue is the subset of a Jira issue the triage flow uses.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the issue's summary, description and type.
type IssueFields struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	IssueType   IssueType `json:"issuetype"`
}

// IssueType names the kind of issue, e.g. "Bug".
type IssueType struct {
	Name string `json:"name"`
}

// IsBug reports whether the issue type is a bug, ignoring case.
func (i Issue) IsBug() bool {
	return strings.EqualFold(i.Fields.IssueType.Name, "bug")
}

// JiraClient queries the Jira REST API with basic authentication.
type JiraClient struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
}

// NewJiraClient validates the connection settings and returns a client.
func NewJiraClient(baseURL, username, token string) (*JiraClient, error) {
	if baseURL == "" {
		return nil, errors.New("JIRA_URL is required")
	}
	if username == "" || token == "" {
		return nil, errors.New("JIRA_USER and JIRA_TOKEN must be set")
	}
	return &JiraClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type searchResponse struct {
	Issues []Issue `json:"issues"`
}

// OpenBugs returns the bugs of project that are not Done. The project key is
// trimmed and upper-cased.
func (c *JiraClient) OpenBugs(ctx context.Context, project string) ([]Issue, error) {
	key := strings.ToUpper(strings.TrimSpace(project))
	jql := fmt.Sprintf("project=%s AND issuetype=Bug AND status!=Done", key)

	u := c.baseURL + "/rest/api/2/search?" + url.Values{"jql": {jql}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query Jira: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Jira response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("failed to query Jira: %s", msg)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return out.Issues, nil
}
