package mediamtx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPathGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/paths/get/cam0", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"cam0","confName":"all_others","ready":true,"tracks":["H264"],"bytesReceived":1024,"readers":[{"type":"webRTCSession","id":"abc"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	p, err := c.PathGet(context.Background(), "cam0")
	require.NoError(t, err)
	assert.Equal(t, "cam0", p.Name)
	assert.True(t, p.Ready)
	assert.Equal(t, []string{"H264"}, p.Tracks)
	assert.Len(t, p.Readers, 1)
}

func TestPathGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"path not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	_, err := c.PathGet(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestPathsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/paths/list", r.URL.Path)
		w.Write([]byte(`{"itemCount":2,"pageCount":1,"items":[{"name":"cam0","ready":true},{"name":"mix","ready":false}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	paths, err := c.PathsList(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "cam0", paths[0].Name)
	assert.False(t, paths[1].Ready)
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"name":"cam0","ready":true,"tracks":["H264"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.WaitReady(ctx, "cam0")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitReadyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := c.WaitReady(ctx, "cam0")
	assert.ErrorIs(t, err, ErrPathNotReady)
}

func TestWaitReachable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"itemCount":0,"pageCount":0,"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitReachable(ctx))
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitReachableTimeout(t *testing.T) {
	// Nothing listens on this port; dials fail immediately.
	c := NewClient("http://127.0.0.1:1", nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := c.WaitReachable(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestPublishedCodec(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"h264", `{"name":"cam0","ready":true,"tracks":["H264"]}`, "h264", false},
		{"h265", `{"name":"cam0","ready":true,"tracks":["H265"]}`, "h265", false},
		{"h264 with audio", `{"name":"cam0","ready":true,"tracks":["MPEG-4 Audio","H264"]}`, "h264", false},
		{"not ready", `{"name":"cam0","ready":false,"tracks":[]}`, "", true},
		{"no video", `{"name":"cam0","ready":true,"tracks":["Opus"]}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, nil, testLogger())
			codec, err := c.PublishedCodec(context.Background(), "cam0")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, codec)
		})
	}
}

func TestReaderCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"mix","ready":true,"readers":[{"type":"webRTCSession","id":"a"},{"type":"hlsMuxer","id":"b"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	assert.Equal(t, 2, c.ReaderCount(context.Background(), "mix"))
}
