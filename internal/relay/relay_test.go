package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/portal-gateway/pkg/logger"
)

func testRelay(upstreamURL string, headerTimeout, bodyTimeout time.Duration) *Relay {
	return New(Config{
		UpstreamBaseURL:       upstreamURL,
		ConnectTimeout:        2 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		BodyTimeout:           bodyTimeout,
	}, logger.New("error"))
}

func TestDo_ForwardsBodyAndHeaders(t *testing.T) {
	var gotBody string
	var gotHeader http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeader = r.Header.Clone()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	rl := testRelay(srv.URL, 5*time.Second, 5*time.Second)

	inbound := http.Header{}
	inbound.Set("Authorization", "Bearer tok-1")
	inbound.Set("Content-Type", "multipart/form-data; boundary=xyz")
	inbound.Set("Connection", "keep-alive")
	inbound.Set("Transfer-Encoding", "chunked")

	resp, err := rl.Do(context.Background(), inbound, strings.NewReader("--xyz--"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"status":true}`, string(body))

	assert.Equal(t, "--xyz--", gotBody)
	assert.Equal(t, "Bearer tok-1", gotHeader.Get("Authorization"))
	assert.Equal(t, "multipart/form-data; boundary=xyz", gotHeader.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeader.Get("Accept"), "default Accept injected")
	assert.Empty(t, gotHeader.Values("Transfer-Encoding"), "hop-by-hop header forwarded")
}

func TestDo_PreservesExplicitAccept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
	}))
	defer srv.Close()

	rl := testRelay(srv.URL, 5*time.Second, 5*time.Second)

	inbound := http.Header{}
	inbound.Set("Accept", "text/plain")

	resp, err := rl.Do(context.Background(), inbound, strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
}

func TestDo_HeaderTimeoutReleasesConnection(t *testing.T) {
	var open int64
	release := make(chan struct{})

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never respond until the test is over
		<-release
	}))
	srv.Config.ConnState = func(c net.Conn, state http.ConnState) {
		switch state {
		case http.StateNew:
			atomic.AddInt64(&open, 1)
		case http.StateClosed:
			atomic.AddInt64(&open, -1)
		}
	}
	srv.Start()
	defer srv.Close()
	defer close(release)

	rl := testRelay(srv.URL, 100*time.Millisecond, 5*time.Second)

	start := time.Now()
	_, err := rl.Do(context.Background(), http.Header{}, strings.NewReader("payload"))
	elapsed := time.Since(start)

	require.Error(t, err)
	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, CategoryTimeout, relayErr.Category)
	assert.Less(t, elapsed, 2*time.Second, "timeout should fire near the configured bound")

	// The aborted outbound connection must be torn down
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&open) != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Zero(t, atomic.LoadInt64(&open), "outbound connection leaked after timeout")
}

func TestDo_BodyTimeout(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	// Total window shorter than the header window
	rl := testRelay(srv.URL, 5*time.Second, 100*time.Millisecond)

	_, err := rl.Do(context.Background(), http.Header{}, strings.NewReader("payload"))

	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, CategoryTimeout, relayErr.Category)
}

func TestDo_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	rl := testRelay("http://"+addr, time.Second, time.Second)

	_, err = rl.Do(context.Background(), http.Header{}, strings.NewReader("payload"))

	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, CategoryUnavailable, relayErr.Category)
}

func TestDo_CallerCancellation(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	rl := testRelay(srv.URL, 5*time.Second, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := rl.Do(ctx, http.Header{}, strings.NewReader("payload"))

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation should abort the in-flight call")
}
