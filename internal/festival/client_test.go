package festival

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/common/logger"
)

// ==========================
// Test Helpers
// ==========================

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "secret-key", 5*time.Second, logger.NewTestLogger(t))
	return client, server
}

func requireStandard(t *testing.T, err error) *apperrors.StandardError {
	t.Helper()
	require.Error(t, err)
	se := apperrors.AsStandard(err)
	require.NotNil(t, se, "error must carry a StandardError")
	return se
}

// ==========================
// Client Tests
// ==========================

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		w.Write([]byte(`[]`))
	})

	_, err := client.AllActivities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode apperrors.ErrorCode
	}{
		{"401 maps to auth failure", http.StatusUnauthorized, `{}`, apperrors.ErrCodeAuthFailed},
		{"403 maps to auth failure", http.StatusForbidden, `{}`, apperrors.ErrCodeAuthFailed},
		{"404 maps to not found", http.StatusNotFound, `{}`, apperrors.ErrCodeNotFound},
		{"422 maps to validation failure", http.StatusUnprocessableEntity, `{"detail":"bad"}`, apperrors.ErrCodeValidationFailed},
		{"500 maps to backend failure", http.StatusInternalServerError, `boom`, apperrors.ErrCodeBackendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.AllActivities(context.Background())
			se := requireStandard(t, err)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.NotEmpty(t, se.Message, "user message must be present")
		})
	}
}

func TestClientValidationDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","username"],"msg":"required"}]}`))
	})

	err := client.Subscribe(context.Background(), "maria", "1")
	se := requireStandard(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, se.Code)
	require.Contains(t, se.Metadata, "detail")
	assert.NotNil(t, se.Metadata["detail"])
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	client := NewClient(server.URL, "k", time.Second, logger.NewNoOpLogger())
	_, err := client.AllActivities(context.Background())
	se := requireStandard(t, err)
	assert.Equal(t, apperrors.ErrCodeTransportFailed, se.Code)
	assert.True(t, se.Retryable)
}

func TestClientSubscribePaths(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, client.Subscribe(context.Background(), "maria", "42"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/activities/subscribe/maria/42", gotPath)

	require.NoError(t, client.Unsubscribe(context.Background(), "maria", "42"))
	assert.Equal(t, "/activities/unsubscribe/maria/42", gotPath)
}

func TestClientRequiresUsername(t *testing.T) {
	client := NewClient("http://unused", "k", time.Second, logger.NewNoOpLogger())

	assertMissing := func(err error) {
		se := requireStandard(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingUsername, se.Code)
	}

	assertMissing(client.Subscribe(context.Background(), "", "1"))
	assertMissing(client.Unsubscribe(context.Background(), "", "1"))
	assertMissing(client.SubscribeTrack(context.Background(), "", "1"))
	assertMissing(client.UnsubscribeTrack(context.Background(), ""))
	_, err := client.Participant(context.Background(), "")
	assertMissing(err)
	_, err = client.Suggestions(context.Background(), "")
	assertMissing(err)
}

func TestClientDecodesWrappedParticipant(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/participants/maria", r.URL.Path)
		w.Write([]byte(`{"data":{"username":"maria","activities":[1,"2"],"labels":["interest:music"]}}`))
	})

	p, err := client.Participant(context.Background(), "maria")
	require.NoError(t, err)
	assert.Equal(t, "maria", p.Username)
	assert.Equal(t, []ID{"1", "2"}, p.ActivityIDs)
	assert.True(t, p.HasCompletedWizard())
}

func TestClientAssignLabels(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"success":true}`))
	})

	err := client.AssignLabels(context.Background(), "maria", []string{"interest:music"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"maria","labels":["interest:music"]}`, gotBody)
}
