// Package wordpress routes subscription mutations through the WordPress
// admin-ajax.php endpoint instead of calling the festival backend directly.
// WordPress holds the API key server-side; the gateway only supplies the
// action name and a nonce.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/common/httpclient"
	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/metrics"
	"signup-gateway/internal/festival"
)

// Bridge posts form-encoded festival_* actions to admin-ajax.php.
type Bridge struct {
	ajaxURL    string
	nonce      string
	httpClient *httpclient.Client
	logger     logger.Logger
}

func NewBridge(ajaxURL, nonce string, timeout time.Duration, log logger.Logger) *Bridge {
	return &Bridge{
		ajaxURL:    ajaxURL,
		nonce:      nonce,
		httpClient: httpclient.New(timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "wordpress-bridge"}),
	}
}

// Subscribe routes an activity subscribe through WordPress.
func (b *Bridge) Subscribe(ctx context.Context, username string, activityID festival.ID) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	return b.post(ctx, "festival_subscribe", map[string]string{
		"username":    username,
		"activity_id": activityID.String(),
	}, "activity_subscribe")
}

// Unsubscribe routes an activity unsubscribe through WordPress.
func (b *Bridge) Unsubscribe(ctx context.Context, username string, activityID festival.ID) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	return b.post(ctx, "festival_unsubscribe", map[string]string{
		"username":    username,
		"activity_id": activityID.String(),
	}, "activity_unsubscribe")
}

// SubscribeTrack routes a track subscribe through WordPress.
func (b *Bridge) SubscribeTrack(ctx context.Context, username string, trackID festival.ID) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	return b.post(ctx, "festival_subscribe_track", map[string]string{
		"username": username,
		"track_id": trackID.String(),
	}, "track_subscribe")
}

// UnsubscribeTrack routes a track unsubscribe through WordPress.
func (b *Bridge) UnsubscribeTrack(ctx context.Context, username string) error {
	if username == "" {
		return apperrors.NewMissingUsernameError()
	}
	return b.post(ctx, "festival_unsubscribe_track", map[string]string{
		"username": username,
	}, "track_unsubscribe")
}

type ajaxResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// post sends one form-encoded action. WordPress replies with its usual
// {success, data} envelope and HTTP 200 even on application errors, so
// both the status code and the success flag are checked.
func (b *Bridge) post(ctx context.Context, action string, fields map[string]string, operation string) error {
	form := url.Values{}
	form.Set("action", action)
	form.Set("nonce", b.nonce)
	for k, v := range fields {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.ajaxURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.NewTransportFailedError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(operation, "transport_error").Inc()
		b.logger.Error("wordpress request failed", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
		return apperrors.NewTransportFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(operation, "read_error").Inc()
		return apperrors.NewTransportFailedError(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.BackendRequests.WithLabelValues(operation, fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return apperrors.NewAuthFailedError(fmt.Sprintf("%s: status %d", action, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		metrics.BackendRequests.WithLabelValues(operation, "http_404").Inc()
		return apperrors.NewNotFoundError(action)
	case resp.StatusCode >= 300:
		metrics.BackendRequests.WithLabelValues(operation, fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return apperrors.NewBackendFailedError(resp.StatusCode, string(body))
	}

	var ajax ajaxResponse
	if err := json.Unmarshal(body, &ajax); err != nil {
		metrics.BackendRequests.WithLabelValues(operation, "malformed").Inc()
		return apperrors.NewMalformedDataError(fmt.Sprintf("decode ajax response: %v", err))
	}
	if !ajax.Success {
		metrics.BackendRequests.WithLabelValues(operation, "rejected").Inc()
		b.logger.Warn("wordpress rejected action", map[string]interface{}{
			"action": action,
			"data":   string(ajax.Data),
		})
		return apperrors.NewBackendFailedError(resp.StatusCode, string(ajax.Data))
	}

	metrics.BackendRequests.WithLabelValues(operation, "ok").Inc()
	return nil
}
