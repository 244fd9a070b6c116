// Package sessionapi is the HTTP client for the remote session service.
// It implements track.API: normal calls are awaited JSON round trips; the
// end-session beacon is a separate fire-and-forget delivery path that
// survives page teardown.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/track"
)

const (
	startPath       = "/v1/sessions/start"
	activityPath    = "/v1/sessions/activity"
	heartbeatPath   = "/v1/sessions/heartbeat"
	endActivityPath = "/v1/sessions/activity/end"
	endPath         = "/v1/sessions/end"
	statsPath       = "/v1/sessions/stats/"
)

type Client struct {
	base          string
	http          *http.Client
	beaconTimeout time.Duration
	log           core.Logger
}

var _ track.API = (*Client)(nil)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		base:          strings.TrimRight(conf.SessionAPI.BaseURL, "/"),
		http:          &http.Client{Timeout: conf.SessionAPI.Timeout},
		beaconTimeout: conf.SessionAPI.BeaconTimeout,
		log:           logger,
	}
}

func (c *Client) BeginSession(ctx context.Context, userID string) (track.BeginResult, error) {
	var res track.BeginResult
	err := c.post(ctx, startPath, map[string]string{"user_id": userID}, &res)
	return res, err
}

func (c *Client) RecordActivity(ctx context.Context, rec track.ActivityRecord) error {
	return c.post(ctx, activityPath, rec, nil)
}

func (c *Client) Heartbeat(ctx context.Context, userID, sessionID string) error {
	return c.post(ctx, heartbeatPath, ref(userID, sessionID), nil)
}

func (c *Client) EndActivity(ctx context.Context, userID, sessionID string) (track.EndResult, error) {
	var res track.EndResult
	err := c.post(ctx, endActivityPath, ref(userID, sessionID), &res)
	return res, err
}

func (c *Client) EndSession(ctx context.Context, userID, sessionID string) (track.EndResult, error) {
	var res track.EndResult
	err := c.post(ctx, endPath, ref(userID, sessionID), &res)
	return res, err
}

// EndSessionBeacon delivers the end-session payload without blocking and
// without reading a result. The response (and any failure) is deliberately
// dropped: by the time this runs the page is going away.
func (c *Client) EndSessionBeacon(userID, sessionID string) {
	body, err := json.Marshal(ref(userID, sessionID))
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.beaconTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endPath, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			c.log.Debug(fmt.Sprintf("sessionapi: beacon not delivered: %v", err))
			return
		}
		_, _ = io.Copy(ioutil.Discard, res.Body)
		_ = res.Body.Close()
	}()
}

func (c *Client) SessionStats(ctx context.Context, userID string) (track.Stats, error) {
	var stats track.Stats
	err := c.get(ctx, statsPath+userID, &stats)
	return stats, err
}

func ref(userID, sessionID string) map[string]string {
	return map[string]string{"user_id": userID, "session_id": sessionID}
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshalling %s payload", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "building %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrapf(err, "building %s request", path)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", req.URL.Path)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("calling %s: unexpected status %d", req.URL.Path, res.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(ioutil.Discard, res.Body)
		return nil
	}
	// a malformed body is treated exactly like a transport failure
	if err = json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", req.URL.Path)
	}
	return nil
}
