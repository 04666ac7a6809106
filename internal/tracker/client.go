// Package tracker talks to the issue tracker (Jira Cloud REST v3).
package tracker

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
)

// Fields is an issue field payload keyed by tracker field id.
type Fields map[string]any

// Record is the subset of an issue needed to file sub-records.
type Record struct {
	ID         string
	Key        string
	ProjectKey string
}

// IssueType is one tracker issue type.
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// RequiredField is a field the tracker demands on create.
type RequiredField struct {
	ID   string
	Name string
}

// Client is the issue tracker contract used by the lifecycle controller.
type Client interface {
	Create(ctx context.Context, fields Fields) (string, error)
	Update(ctx context.Context, key string, fields Fields) error
	Link(ctx context.Context, outwardKey, inwardKey, relation string) error
	Get(ctx context.Context, key string) (*Record, error)
	ListTypes(ctx context.Context) ([]IssueType, error)
	RequiredFields(ctx context.Context, projectKey, issueTypeID string) ([]RequiredField, error)
}

// JiraClient implements Client over resty with basic auth.
type JiraClient struct {
	http    *resty.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewJiraClient builds a client from the tracker configuration.
func NewJiraClient(cfg config.TrackerConfig, logger *zap.Logger, metrics *observability.Metrics) *JiraClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout(),
		KeepAlive: 30 * time.Second,
	}).DialContext

	client := resty.New().
		SetTransport(transport).
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.Email, cfg.APIToken).
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &JiraClient{http: client, logger: logger, metrics: metrics}
}

func (c *JiraClient) Create(ctx context.Context, fields Fields) (string, error) {
	payload, _ := json.Marshal(fields)
	c.logger.Debug("tracker create", zap.String("fields", observability.Truncate(string(payload), bodyLimit)))

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"fields": fields}).
		Post("/rest/api/3/issue")
	if err != nil {
		return "", c.networkError("create", err)
	}
	c.metrics.RecordTrackerCall("create", resp.StatusCode())
	if resp.StatusCode() != http.StatusCreated {
		return "", c.apiError("create", resp)
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(resp.Body(), &created); err != nil || created.Key == "" {
		return "", &DecodeError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return created.Key, nil
}

func (c *JiraClient) Update(ctx context.Context, key string, fields Fields) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetBody(map[string]any{"fields": fields}).
		Put("/rest/api/3/issue/{key}")
	if err != nil {
		return c.networkError("update", err)
	}
	c.metrics.RecordTrackerCall("update", resp.StatusCode())
	switch resp.StatusCode() {
	case http.StatusNoContent, http.StatusOK:
		return nil
	}
	return c.apiError("update", resp)
}

func (c *JiraClient) Link(ctx context.Context, outwardKey, inwardKey, relation string) error {
	body := map[string]any{
		"type":         map[string]string{"name": relation},
		"outwardIssue": map[string]string{"key": outwardKey},
		"inwardIssue":  map[string]string{"key": inwardKey},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/rest/api/3/issueLink")
	if err != nil {
		return c.networkError("link", err)
	}
	c.metrics.RecordTrackerCall("link", resp.StatusCode())
	switch resp.StatusCode() {
	case http.StatusCreated, http.StatusOK:
		return nil
	}
	return c.apiError("link", resp)
}

func (c *JiraClient) Get(ctx context.Context, key string) (*Record, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetQueryParam("fields", "project").
		Get("/rest/api/3/issue/{key}")
	if err != nil {
		return nil, c.networkError("get", err)
	}
	c.metrics.RecordTrackerCall("get", resp.StatusCode())
	if resp.StatusCode() != http.StatusOK {
		return nil, c.apiError("get", resp)
	}

	var issue struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Fields struct {
			Project struct {
				Key string `json:"key"`
			} `json:"project"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(resp.Body(), &issue); err != nil {
		return nil, &DecodeError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return &Record{ID: issue.ID, Key: issue.Key, ProjectKey: issue.Fields.Project.Key}, nil
}

func (c *JiraClient) ListTypes(ctx context.Context) ([]IssueType, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/rest/api/3/issuetype")
	if err != nil {
		return nil, c.networkError("issuetype", err)
	}
	c.metrics.RecordTrackerCall("issuetype", resp.StatusCode())
	if resp.StatusCode() != http.StatusOK {
		return nil, c.apiError("issuetype", resp)
	}

	var types []IssueType
	if err := json.Unmarshal(resp.Body(), &types); err != nil {
		return nil, &DecodeError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return types, nil
}

func (c *JiraClient) RequiredFields(ctx context.Context, projectKey, issueTypeID string) ([]RequiredField, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"projectKeys":  projectKey,
			"issuetypeIds": issueTypeID,
			"expand":       "projects.issuetypes.fields",
		}).
		Get("/rest/api/3/issue/createmeta")
	if err != nil {
		return nil, c.networkError("createmeta", err)
	}
	c.metrics.RecordTrackerCall("createmeta", resp.StatusCode())
	if resp.StatusCode() != http.StatusOK {
		return nil, c.apiError("createmeta", resp)
	}

	var meta struct {
		Projects []struct {
			IssueTypes []struct {
				Fields map[string]struct {
					Name     string `json:"name"`
					Required bool   `json:"required"`
				} `json:"fields"`
			} `json:"issuetypes"`
		} `json:"projects"`
	}
	if err := json.Unmarshal(resp.Body(), &meta); err != nil {
		return nil, &DecodeError{Status: resp.StatusCode(), Body: resp.String()}
	}

	var required []RequiredField
	for _, p := range meta.Projects {
		for _, it := range p.IssueTypes {
			for id, f := range it.Fields {
				if f.Required {
					required = append(required, RequiredField{ID: id, Name: f.Name})
				}
			}
		}
	}
	sort.Slice(required, func(i, j int) bool { return required[i].ID < required[j].ID })
	return required, nil
}

func (c *JiraClient) networkError(op string, err error) error {
	c.logger.Warn("tracker request failed", zap.String("op", op), zap.Error(err))
	c.metrics.RecordTrackerCall(op, 0)
	return &NetworkError{Err: err}
}

func (c *JiraClient) apiError(op string, resp *resty.Response) error {
	apiErr := parseAPIError(resp.StatusCode(), resp.Body())
	c.logger.Warn("tracker rejected request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode()),
		zap.String("body", observability.Truncate(resp.String(), bodyLimit)))
	return apiErr
}
