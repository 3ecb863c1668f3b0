package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	apperrors "sirius/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

func TestSession_GetSendsHeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/profiles", r.URL.Path)
		assert.Equal(t, "STANDARD", r.URL.Query().Get("types"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":1,"type":"PERSONAL"},{"id":2,"type":"BUSINESS"}]`))
	}))
	defer server.Close()

	s := NewSession(server.URL, map[string]string{"Authorization": "Bearer key"})
	profiles, err := GetMultiple[profile](context.Background(), s, "/v2/profiles", url.Values{"types": {"STANDARD"}})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "BUSINESS", profiles[1].Type)
}

func TestSession_PostEncodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-idempotence-uuid"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PERSONAL", body["type"])

		_, _ = w.Write([]byte(`{"id":7,"type":"PERSONAL"}`))
	}))
	defer server.Close()

	s := NewSession(server.URL, nil)
	resp, err := s.Post(context.Background(), "profiles", map[string]string{"type": "PERSONAL"}, map[string]string{"X-idempotence-uuid": "abc"})
	require.NoError(t, err)

	var p profile
	require.NoError(t, resp.Decode(&p))
	assert.Equal(t, 7, p.ID)
}

func TestSession_PostFormWithBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sid", user)
		assert.Equal(t, "token", pass)

		raw, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(raw))
		require.NoError(t, err)
		assert.Equal(t, "hello", form.Get("Body"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	s := NewSession(server.URL, nil, WithBasicAuth("sid", "token"))
	resp, err := s.PostForm(context.Background(), "/Messages.json", url.Values{"Body": {"hello"}})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccessful)
}

func TestSession_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		clientSide bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, clientSide: true},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, clientSide: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, clientSide: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer server.Close()

			s := NewSession(server.URL, nil)
			resp, err := s.Delete(context.Background(), "/thing")
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.False(t, resp.IsSuccessful)
			assert.Equal(t, tt.clientSide, apperrors.IsClientSide(err))
			assert.Equal(t, !tt.clientSide, apperrors.IsServerSide(err))
			assert.Contains(t, err.Error(), "Response Text: nope")
			assert.Contains(t, err.Error(), "Method: DELETE")
		})
	}
}

func TestSession_AbsolutePathIgnoresBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":3}`))
	}))
	defer server.Close()

	s := NewSession("https://unused.invalid", nil)
	p, err := GetOne[profile](context.Background(), s, server.URL+"/x", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, p.ID)
}

func TestSession_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSession(server.URL, nil).Get(ctx, "/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
}
