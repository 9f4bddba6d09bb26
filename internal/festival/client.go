package festival

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/common/httpclient"
	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/metrics"
)

// Client talks to the festival REST backend. Every request carries the
// X-API-KEY header; every failure is normalized into a StandardError with
// a user-presentable message.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
	logger     logger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.New(timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "festival-client"}),
	}
}

// AllActivities fetches the full activity list. Entries the backend sends
// as null or non-objects come back as nil slots for the validator.
func (c *Client) AllActivities(ctx context.Context) ([]*Activity, error) {
	body, err := c.do(ctx, http.MethodGet, "/activities/all", nil, "activities_all")
	if err != nil {
		return nil, err
	}
	list, err := DecodeActivityList(body)
	if err != nil {
		return nil, apperrors.NewMalformedDataError(err.Error())
	}
	return list, nil
}

// Activity fetches a single activity by id.
func (c *Client) Activity(ctx context.Context, id ID) (*Activity, error) {
	body, err := c.do(ctx, http.MethodGet, "/activities/"+url.PathEscape(id.String()), nil, "activity_get")
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, apperrors.NewMalformedDataError(err.Error())
	}
	var a Activity
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return nil, apperrors.NewMalformedDataError(fmt.Sprintf("decode activity: %v", err))
	}
	return &a, nil
}

// Subscribe subscribes a participant to an activity.
func (c *Client) Subscribe(ctx context.Context, username string, activityID ID) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	path := fmt.Sprintf("/activities/subscribe/%s/%s", url.PathEscape(username), url.PathEscape(activityID.String()))
	_, err := c.do(ctx, http.MethodPut, path, nil, "activity_subscribe")
	return err
}

// Unsubscribe removes a participant from an activity.
func (c *Client) Unsubscribe(ctx context.Context, username string, activityID ID) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	path := fmt.Sprintf("/activities/unsubscribe/%s/%s", url.PathEscape(username), url.PathEscape(activityID.String()))
	_, err := c.do(ctx, http.MethodPut, path, nil, "activity_unsubscribe")
	return err
}

// Participant fetches the participant record for a username.
func (c *Client) Participant(ctx context.Context, username string) (*Participant, error) {
	if username == "" {
		return nil, apperrors.NewMissingUsernameError()
	}
	body, err := c.do(ctx, http.MethodGet, "/participants/"+url.PathEscape(username), nil, "participant_get")
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, apperrors.NewMalformedDataError(err.Error())
	}
	var p Participant
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, apperrors.NewMalformedDataError(fmt.Sprintf("decode participant: %v", err))
	}
	return &p, nil
}

// CreateParticipant registers a new participant record.
func (c *Client) CreateParticipant(ctx context.Context, p *Participant) error {
	_, err := c.do(ctx, http.MethodPost, "/participants/", p, "participant_create")
	return err
}

// AllTracks fetches the track list.
func (c *Client) AllTracks(ctx context.Context) ([]*Track, error) {
	body, err := c.do(ctx, http.MethodGet, "/tracks/all", nil, "tracks_all")
	if err != nil {
		return nil, err
	}
	tracks, err := DecodeTrackList(body)
	if err != nil {
		return nil, apperrors.NewMalformedDataError(err.Error())
	}
	return tracks, nil
}

// SubscribeTrack subscribes a participant to a track as a set.
func (c *Client) SubscribeTrack(ctx context.Context, username string, trackID ID) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	path := fmt.Sprintf("/tracks/subscribe/%s/%s", url.PathEscape(username), url.PathEscape(trackID.String()))
	_, err := c.do(ctx, http.MethodPut, path, nil, "track_subscribe")
	return err
}

// UnsubscribeTrack removes the participant's track subscription.
func (c *Client) UnsubscribeTrack(ctx context.Context, username string) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	_, err := c.do(ctx, http.MethodPut, "/tracks/unsubscribe/"+url.PathEscape(username), nil, "track_unsubscribe")
	return err
}

// Suggestions fetches the session-only suggestion bundle for a username.
func (c *Client) Suggestions(ctx context.Context, username string) (*SuggestionBundle, error) {
	if username == "" {
		return nil, apperrors.NewMissingUsernameError()
	}
	body, err := c.do(ctx, http.MethodGet, "/suggestions/suggestions/"+url.PathEscape(username), nil, "suggestions_get")
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, apperrors.NewMalformedDataError(err.Error())
	}
	var bundle SuggestionBundle
	if err := json.Unmarshal(env.Payload, &bundle); err != nil {
		return nil, apperrors.NewMalformedDataError(fmt.Sprintf("decode suggestions: %v", err))
	}
	return &bundle, nil
}

// AssignLabels stores the preference labels derived from wizard answers.
func (c *Client) AssignLabels(ctx context.Context, username string, labels []string) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	payload := map[string]interface{}{
		"username": username,
		"labels":   labels,
	}
	_, err := c.do(ctx, http.MethodPost, "/labels/assign", payload, "labels_assign")
	return err
}

// ClearLabels removes all labels for a username (wizard reset).
func (c *Client) ClearLabels(ctx context.Context, username string) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	_, err := c.do(ctx, http.MethodPost, "/labels/clear/"+url.PathEscape(username), nil, "labels_clear")
	return err
}

// do executes one backend request and maps the response status to the
// error taxonomy. The returned body is only valid for 2xx responses.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, operation string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.NewMalformedDataError(fmt.Sprintf("marshal request: %v", err))
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, apperrors.NewTransportFailedError(err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(operation, "transport_error").Inc()
		c.logger.Error("backend request failed", map[string]interface{}{
			"operation": operation,
			"error":     err.Error(),
		})
		return nil, apperrors.NewTransportFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(operation, "read_error").Inc()
		return nil, apperrors.NewTransportFailedError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.BackendRequests.WithLabelValues(operation, "ok").Inc()
		return body, nil
	}

	metrics.BackendRequests.WithLabelValues(operation, fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
	c.logger.Warn("backend returned error status", map[string]interface{}{
		"operation": operation,
		"status":    resp.StatusCode,
	})

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.NewAuthFailedError(fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode))
	case http.StatusNotFound:
		return nil, apperrors.NewNotFoundError(path)
	case http.StatusUnprocessableEntity:
		var detail struct {
			Detail interface{} `json:"detail"`
		}
		if err := json.Unmarshal(body, &detail); err != nil || detail.Detail == nil {
			return nil, apperrors.NewValidationFailedError(string(body))
		}
		return nil, apperrors.NewValidationFailedError(detail.Detail)
	default:
		return nil, apperrors.NewBackendFailedError(resp.StatusCode, string(body))
	}
}
