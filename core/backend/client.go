package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Client is the part of the backend the emitter needs.
type Client interface {
	// CreateSearch submits a search job and returns its id.
	CreateSearch(ctx context.Context, query string) (string, error)
	// PollStatus fetches the current state of a search job.
	PollStatus(ctx context.Context, jobID string) (*SearchStatus, error)
}

// SearchStatus is the outcome of one poll.
type SearchStatus struct {
	// Ready is true once the job results are available.
	Ready bool
	// Code is the HTTP status of the poll.
	Code int
	// Results holds the decoded results when Ready.
	Results json.RawMessage
}

type loginResponse struct {
	SessionKey string `json:"sessionKey"`
}

type message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type searchResponse struct {
	SID      string    `json:"sid"`
	Messages []message `json:"messages"`
}

// SplunkClient implements Client against the Splunk management REST API.
type SplunkClient struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.RWMutex
	sessionKey string
	sf         singleflight.Group
}

// NewSplunkClient returns a client; the login happens lazily on first use.
func NewSplunkClient(cfg Config, logger *zap.Logger) *SplunkClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SplunkClient{cfg: cfg, logger: logger, sessionKey: cfg.SessionKey}
}

// connect returns the session key, logging in at most once for concurrent callers.
func (c *SplunkClient) connect(ctx context.Context) (string, error) {
	c.mu.RLock()
	key := c.sessionKey
	c.mu.RUnlock()
	if key != "" {
		return key, nil
	}

	v, err, _ := c.sf.Do("login", func() (interface{}, error) {
		c.mu.RLock()
		if c.sessionKey != "" {
			defer c.mu.RUnlock()
			return c.sessionKey, nil
		}
		c.mu.RUnlock()

		if err := ctx.Err(); err != nil {
			return "", err
		}

		loginURL := c.cfg.BaseURL() + "/services/auth/login?output_mode=json"
		args := fiber.AcquireArgs()
		defer fiber.ReleaseArgs(args)
		args.Set("username", c.cfg.Username)
		args.Set("password", c.cfg.Password)

		agent := c.prepare(fiber.Post(loginURL)).
			BasicAuth(c.cfg.Username, c.cfg.Password).
			Form(args)
		code, body, errs := agent.Bytes()
		if len(errs) > 0 {
			return "", fmt.Errorf("failed to reach %s: %w", loginURL, errors.Join(errs...))
		}
		if code != fiber.StatusOK {
			return "", fmt.Errorf("%w: status %d from %s", ErrAuthentication, code, loginURL)
		}

		var resp loginResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode login response: %w", err)
		}
		if resp.SessionKey == "" {
			return "", fmt.Errorf("%w: empty session key", ErrAuthentication)
		}

		c.mu.Lock()
		c.sessionKey = resp.SessionKey
		c.mu.Unlock()
		c.logger.Debug("Logged in to backend", zap.String("host", c.cfg.Host), zap.String("user", c.cfg.Username))
		return resp.SessionKey, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *SplunkClient) prepare(agent *fiber.Agent) *fiber.Agent {
	agent.Timeout(c.cfg.RequestTimeout())
	if c.cfg.InsecureSkipVerify {
		agent.InsecureSkipVerify()
	}
	return agent
}

// CreateSearch submits query as a search job. Queries not starting with "search" are prefixed.
func (c *SplunkClient) CreateSearch(ctx context.Context, query string) (string, error) {
	key, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !strings.HasPrefix(query, "search") {
		query = "search " + query
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("search", query)

	jobsURL := c.cfg.BaseURL() + "/services/search/jobs?output_mode=json"
	agent := c.prepare(fiber.Post(jobsURL)).
		Set(fiber.HeaderAuthorization, "Splunk "+key).
		Form(args)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("failed to create search: %w", errors.Join(errs...))
	}
	if code == fiber.StatusUnauthorized {
		c.invalidate(key)
		return "", fmt.Errorf("%w: status %d creating search", ErrAuthentication, code)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode search response (status %d): %w", code, err)
	}
	if len(resp.Messages) > 0 && resp.Messages[0].Type == "FATAL" {
		return "", &FatalQueryError{Query: query, Message: resp.Messages[0].Text}
	}
	if code >= fiber.StatusBadRequest {
		return "", &StatusError{Op: "create search", Code: code, Body: string(body)}
	}
	if resp.SID == "" {
		return "", fmt.Errorf("search response carried no job id (status %d)", code)
	}

	c.logger.Debug("Created search", zap.String("search", query), zap.String("sid", resp.SID))
	return resp.SID, nil
}

// PollStatus fetches the results endpoint of jobID once.
func (c *SplunkClient) PollStatus(ctx context.Context, jobID string) (*SearchStatus, error) {
	key, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resultsURL := fmt.Sprintf("%s/services/search/jobs/%s/results?output_mode=json", c.cfg.BaseURL(), url.PathEscape(jobID))
	agent := c.prepare(fiber.Get(resultsURL)).
		Set(fiber.HeaderAuthorization, "Splunk "+key)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to poll search %s: %w", jobID, errors.Join(errs...))
	}

	switch {
	case code == fiber.StatusOK:
		return &SearchStatus{Ready: true, Code: code, Results: json.RawMessage(body)}, nil
	case code == fiber.StatusUnauthorized:
		c.invalidate(key)
		return nil, fmt.Errorf("%w: status %d polling search %s", ErrAuthentication, code, jobID)
	case code >= fiber.StatusBadRequest:
		return nil, &StatusError{Op: "poll search " + jobID, Code: code, Body: string(body)}
	default:
		return &SearchStatus{Code: code}, nil
	}
}

// invalidate drops a rejected session key so the next call logs in again.
func (c *SplunkClient) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey == key && c.cfg.SessionKey == "" {
		c.sessionKey = ""
	}
}
