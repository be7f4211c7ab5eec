// Package mediamtx talks to the media server's control API. The engine never
// serves WebRTC, HLS or RTSP fan-out itself; it publishes to MediaMTX and
// asks this API which paths are live and what codec they carry.
package mediamtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrPathNotFound = errors.New("path not found")
	ErrPathNotReady = errors.New("path not ready")
)

// Path is one entry from the control API's path listing.
type Path struct {
	Name          string   `json:"name"`
	ConfName      string   `json:"confName"`
	Ready         bool     `json:"ready"`
	ReadyTime     *string  `json:"readyTime"`
	Tracks        []string `json:"tracks"`
	BytesReceived int64    `json:"bytesReceived"`
	BytesSent     int64    `json:"bytesSent"`
	Readers       []Reader `json:"readers"`
}

// Reader identifies one consumer of a path.
type Reader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type pathList struct {
	ItemCount int    `json:"itemCount"`
	PageCount int    `json:"pageCount"`
	Items     []Path `json:"items"`
}

// Client queries the MediaMTX v3 control API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a control API client. baseURL is the API root, e.g.
// "http://127.0.0.1:9997". A nil httpClient gets a 5 second timeout client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.With(slog.String("component", "mediamtx")),
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("media server API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrPathNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("media server API %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// PathsList returns every configured or active path the server knows.
func (c *Client) PathsList(ctx context.Context) ([]Path, error) {
	var list pathList
	if err := c.get(ctx, "/v3/paths/list", &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Ping checks that the control API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.PathsList(ctx)
	return err
}

// WaitReachable polls until the control API answers or the context expires.
// The engine usually boots in parallel with the media server, so the first
// pings are expected to fail. Callers bound the wait through the context
// deadline.
func (c *Client) WaitReachable(ctx context.Context) error {
	delay := 200 * time.Millisecond
	for {
		err := c.Ping(ctx)
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("media server API unreachable: %w", err)
		case <-time.After(delay):
		}
		if delay < time.Second {
			delay *= 2
		}
	}
}

// PathGet returns one path by name. ErrPathNotFound when the server has
// never seen a publisher for it.
func (c *Client) PathGet(ctx context.Context, name string) (Path, error) {
	var p Path
	if err := c.get(ctx, "/v3/paths/get/"+url.PathEscape(name), &p); err != nil {
		return Path{}, err
	}
	return p, nil
}

// IsReady reports whether a path currently has an active publisher.
func (c *Client) IsReady(ctx context.Context, name string) bool {
	p, err := c.PathGet(ctx, name)
	return err == nil && p.Ready
}

// WaitReady polls until the path is ready or the context expires. Publish
// pipelines take a moment to negotiate RTSP; callers bound the wait through
// the context deadline.
func (c *Client) WaitReady(ctx context.Context, name string) error {
	delay := 100 * time.Millisecond
	for {
		p, err := c.PathGet(ctx, name)
		if err == nil && p.Ready {
			return nil
		}
		if err != nil && !errors.Is(err, ErrPathNotFound) {
			c.logger.Debug("path readiness poll failed",
				slog.String("path", name),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for path %s: %w", name, ErrPathNotReady)
		case <-time.After(delay):
		}
		if delay < time.Second {
			delay *= 2
		}
	}
}

// PublishedCodec returns the normalized video codec carried on a path:
// "h264", "h265", or an error when the path carries neither. Recordings must
// match the published codec or the depayloader produces garbage.
func (c *Client) PublishedCodec(ctx context.Context, name string) (string, error) {
	p, err := c.PathGet(ctx, name)
	if err != nil {
		return "", err
	}
	if !p.Ready {
		return "", fmt.Errorf("path %s: %w", name, ErrPathNotReady)
	}
	for _, track := range p.Tracks {
		switch strings.ToUpper(track) {
		case "H264":
			return "h264", nil
		case "H265":
			return "h265", nil
		}
	}
	return "", fmt.Errorf("path %s carries no supported video track (tracks: %s)", name, strings.Join(p.Tracks, ", "))
}

// ReaderCount returns how many consumers a path has, zero when the path is
// unknown.
func (c *Client) ReaderCount(ctx context.Context, name string) int {
	p, err := c.PathGet(ctx, name)
	if err != nil {
		return 0
	}
	return len(p.Readers)
}
