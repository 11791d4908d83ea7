package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/portal-gateway/pkg/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 5*time.Second, nil, logger.New("error"))
	return client, srv
}

func TestExists_ProfilePresent(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, getProfilePath, r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"data":{"profile_id":"prof-42","first_name":"Ada"}}`))
	})

	assert.True(t, client.Exists(context.Background(), "tok-1"))
}

func TestExists_NumericProfileID(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"profile_id":42}}`))
	})

	assert.True(t, client.Exists(context.Background(), "tok-1"))
}

func TestExists_FailsClosed(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "status false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":false,"data":{"profile_id":"prof-42"}}`))
			},
		},
		{
			name: "data null",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":true,"data":null}`))
			},
		},
		{
			name: "profile_id absent",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":true,"data":{"first_name":"Ada"}}`))
			},
		},
		{
			name: "profile_id empty string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":true,"data":{"profile_id":""}}`))
			},
		},
		{
			name: "profile_id zero",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":true,"data":{"profile_id":0}}`))
			},
		},
		{
			name: "upstream error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no", http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":true,"data":`))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := testClient(t, tc.handler)
			assert.False(t, client.Exists(context.Background(), "tok-1"))
		})
	}
}

func TestExists_UpstreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(srv.URL, time.Second, nil, logger.New("error"))
	srv.Close()

	assert.False(t, client.Exists(context.Background(), "tok-1"))
}

func TestExists_EmptyTokenShortCircuits(t *testing.T) {
	called := false
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	assert.False(t, client.Exists(context.Background(), ""))
	assert.False(t, client.Exists(context.Background(), "   "))
	require.False(t, called, "upstream must not be consulted for empty tokens")
}

func TestTruthyID(t *testing.T) {
	assert.True(t, truthyID("prof-1"))
	assert.True(t, truthyID(float64(7)))
	assert.False(t, truthyID(""))
	assert.False(t, truthyID(float64(0)))
	assert.False(t, truthyID(nil))
	assert.False(t, truthyID([]interface{}{"x"}))
}
