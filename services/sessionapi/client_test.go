package sessionapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/track"
)

func activityRecord(userID, sessionID string) track.ActivityRecord {
	return track.ActivityRecord{
		UserID:    userID,
		SessionID: sessionID,
		Type:      track.TypeModule,
		ModuleID:  "mod-1",
	}
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = nopLogger{}

func newTestClient(baseURL string) *Client {
	conf := &core.Config{}
	conf.SessionAPI.BaseURL = baseURL
	conf.SessionAPI.Timeout = time.Second
	conf.SessionAPI.BeaconTimeout = time.Second
	return NewClient(conf, nopLogger{})
}

func Test_Client_BeginSession(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id":       "sess-1",
			"existing_session": true,
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).BeginSession(context.Background(), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "/v1/sessions/start", gotPath)
	assert.Equal(t, map[string]string{"user_id": "usr-1"}, gotBody)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.True(t, res.ExistingSession)
}

func Test_Client_RecordActivity(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/activity", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.RecordActivity(context.Background(), activityRecord("usr-1", "sess-1"))
	require.NoError(t, err)
	assert.Equal(t, "module", gotBody["activity_type"])
	assert.Equal(t, "sess-1", gotBody["session_id"])
	assert.Equal(t, "mod-1", gotBody["module_id"])
	// empty optional refs stay off the wire
	_, present := gotBody["learning_path_id"]
	assert.False(t, present)
}

func Test_Client_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.BeginSession(context.Background(), "usr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	assert.Error(t, c.Heartbeat(context.Background(), "usr-1", "sess-1"))
}

func Test_Client_malformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id": `)) // truncated
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).BeginSession(context.Background(), "usr-1")
	assert.Error(t, err)
}

func Test_Client_EndActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/activity/end", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"activity_ended":   true,
			"duration_seconds": 95,
			"duration_minutes": 1,
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).EndActivity(context.Background(), "usr-1", "sess-1")
	require.NoError(t, err)
	assert.True(t, res.ActivityEnded)
	assert.Equal(t, 95, res.DurationSeconds)
	assert.Equal(t, 1, res.DurationMinutes)
}

func Test_Client_SessionStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/sessions/stats/usr-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user_id":        "usr-1",
			"total_sessions": 2,
			"total_seconds":  777,
		})
	}))
	defer srv.Close()

	stats, err := newTestClient(srv.URL).SessionStats(context.Background(), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 777, stats.TotalSeconds)
}

func Test_Client_EndSessionBeacon(t *testing.T) {
	var mu sync.Mutex
	var gotBody map[string]string
	received := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/end", r.URL.Path)
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		time.Sleep(50 * time.Millisecond) // slow server must not block the caller
		w.Write([]byte(`{}`))
		close(received)
	}))
	defer srv.Close()

	start := time.Now()
	newTestClient(srv.URL).EndSessionBeacon("usr-1", "sess-1")
	assert.Less(t, int64(time.Since(start)), int64(40*time.Millisecond),
		"beacon must be fire-and-forget")

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("beacon request never arrived")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"user_id": "usr-1", "session_id": "sess-1"}, gotBody)
}
