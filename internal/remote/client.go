package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/submissions"
	"github.com/terraguardian/core/internal/syncer"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

var errMissingBaseURL = errors.New("remote: base url is required")

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the remote system of record. It implements the sync
// engine's RemoteService and the award engine's SnapshotSource and
// BadgeGranter, mapping transport failures to NetworkError and 422 responses
// to ValidationRejected.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient constructs the API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		http:    httpClient,
		logger:  logger,
	}, nil
}

type submissionRequestBody struct {
	ClientSubmissionID string        `json:"client_submission_id"`
	QuestID            string        `json:"quest_id"`
	PhotoRef           string        `json:"photo_ref"`
	Location           *locationBody `json:"location,omitempty"`
}

type locationBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type validationBody struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Passed     bool    `json:"passed"`
}

type submissionResponseBody struct {
	SubmissionID string         `json:"submission_id"`
	Duplicate    bool           `json:"duplicate"`
	Validation   validationBody `json:"validation"`
	PointsEarned int            `json:"points_earned"`
}

// SubmitSubmission pushes one submission; idempotent on the submission id.
func (c *Client) SubmitSubmission(ctx context.Context, req syncer.SubmissionRequest) (syncer.SubmissionResult, error) {
	body := submissionRequestBody{
		ClientSubmissionID: req.SubmissionID,
		QuestID:            req.QuestID,
		PhotoRef:           req.PhotoRef,
	}
	if req.LocationLat != nil && req.LocationLng != nil {
		body.Location = &locationBody{Lat: *req.LocationLat, Lng: *req.LocationLng}
	}

	var response submissionResponseBody
	if err := c.postJSON(ctx, "/submissions", body, &response); err != nil {
		return syncer.SubmissionResult{}, err
	}
	return syncer.SubmissionResult{
		Validation: awards.ValidationResult{
			Label:      response.Validation.Label,
			Confidence: response.Validation.Confidence,
			Passed:     response.Validation.Passed,
		},
		PointsEarned: response.PointsEarned,
		Duplicate:    response.Duplicate,
	}, nil
}

type actionRequestBody struct {
	ActionID string `json:"action_id"`
	Action   string `json:"action"`
	Entity   string `json:"entity"`
	Payload  string `json:"payload"`
}

// PushAction delivers one generic queued action; idempotent on the item id.
func (c *Client) PushAction(ctx context.Context, item submissions.SyncQueueItem) error {
	body := actionRequestBody{
		ActionID: item.QueueID,
		Action:   string(item.Action),
		Entity:   item.Entity,
		Payload:  item.PayloadJSON,
	}
	return c.postJSON(ctx, "/actions", body, nil)
}

// Snapshot fetches the authoritative activity snapshot for the token's user.
// The userID argument is advisory; the server scopes the snapshot by token.
func (c *Client) Snapshot(ctx context.Context, _ string) (awards.Snapshot, error) {
	var snapshot awards.Snapshot
	if err := c.getJSON(ctx, "/users/me/snapshot", &snapshot); err != nil {
		return awards.Snapshot{}, err
	}
	return snapshot, nil
}

type badgeGrantBody struct {
	BadgeType string `json:"badge_type"`
}

type badgeGrantResponseBody struct {
	Granted        bool `json:"granted"`
	AlreadyGranted bool `json:"already_granted"`
}

// Grant requests a badge grant; the server's uniqueness constraint makes a
// duplicate a no-op reported as granted=false.
func (c *Client) Grant(ctx context.Context, _ string, badgeType awards.BadgeType) (bool, error) {
	var response badgeGrantResponseBody
	err := c.postJSON(ctx, "/badges", badgeGrantBody{BadgeType: string(badgeType)}, &response)
	if err != nil {
		return false, err
	}
	return response.Granted, nil
}

type questListResponseBody struct {
	Quests []quests.Quest `json:"quests"`
}

// ListQuests fetches the quest catalog for offline caching.
func (c *Client) ListQuests(ctx context.Context) ([]quests.Quest, error) {
	var response questListResponseBody
	if err := c.getJSON(ctx, "/quests", &response); err != nil {
		return nil, err
	}
	return response.Quests, nil
}

type currentUserResponseBody struct {
	UserID     string `json:"user_id"`
	Points     int    `json:"points"`
	StreakDays int    `json:"streak_days"`
}

// CurrentUser fetches the token's user record for the local mirror.
func (c *Client) CurrentUser(ctx context.Context) (submissions.LocalUser, error) {
	var response currentUserResponseBody
	if err := c.getJSON(ctx, "/users/me", &response); err != nil {
		return submissions.LocalUser{}, err
	}
	return submissions.LocalUser{
		UserID:     response.UserID,
		Points:     response.Points,
		StreakDays: response.StreakDays,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	return c.do(request, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(request, out)
}

type rejectionResponseBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (c *Client) do(request *http.Request, out interface{}) error {
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	response, err := c.http.Do(request)
	if err != nil {
		return syncer.NewNetworkError(err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return syncer.NewNetworkError(err)
	}

	switch {
	case response.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return syncer.NewNetworkError(fmt.Errorf("decoding %s response: %w", request.URL.Path, err))
		}
		return nil
	case response.StatusCode == http.StatusUnprocessableEntity:
		var rejection rejectionResponseBody
		reason := "rejected by server"
		if err := json.Unmarshal(payload, &rejection); err == nil && rejection.Reason != "" {
			reason = rejection.Reason
		}
		return syncer.NewValidationRejected(reason)
	case response.StatusCode >= http.StatusInternalServerError:
		return syncer.NewNetworkError(fmt.Errorf("server error: status %d", response.StatusCode))
	default:
		// 4xx outside 422: client bug or revoked auth; retrying will not help.
		return syncer.NewValidationRejected(fmt.Sprintf("unexpected status %d", response.StatusCode))
	}
}
