package session

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound        = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already ended")
	ErrNoOpenActivity  = errors.New("no open activity for this session")
	ErrUnknownActivity = errors.New("unknown activity type")
)

type (
	// Session is a bounded span of user presence containing zero or more
	// activities. EndedAt stays zero while the session is open.
	Session struct {
		ID        string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		StartedAt time.Time `json:"started_at"`
		EndedAt   time.Time `json:"ended_at,omitempty"`
	}

	// Activity is one tracked unit of engagement within a session.
	Activity struct {
		ID             string    `json:"id"`
		SessionID      string    `json:"session_id"`
		UserID         string    `json:"user_id"`
		Type           string    `json:"activity_type"`
		LearningPathID string    `json:"learning_path_id,omitempty"`
		ModuleID       string    `json:"module_id,omitempty"`
		StartedAt      time.Time `json:"started_at"`
		LastSeenAt     time.Time `json:"last_seen_at"`
		EndedAt        time.Time `json:"ended_at,omitempty"`
	}

	// BeginSession is the "begin session" request payload.
	BeginSession struct {
		UserID string `json:"user_id" validate:"required"`
	}

	// NewActivity is the "record activity" request payload.
	NewActivity struct {
		UserID         string `json:"user_id" validate:"required"`
		SessionID      string `json:"session_id" validate:"required,uuid"`
		Type           string `json:"activity_type" validate:"required"`
		LearningPathID string `json:"learning_path_id,omitempty"`
		ModuleID       string `json:"module_id,omitempty"`
	}

	// Ref addresses an open session in heartbeat/end requests.
	Ref struct {
		UserID    string `json:"user_id" validate:"required"`
		SessionID string `json:"session_id" validate:"required,uuid"`
	}

	// ActivityEnd is the "end activity" response.
	ActivityEnd struct {
		ActivityEnded   bool `json:"activity_ended"`
		DurationSeconds int  `json:"duration_seconds"`
		DurationMinutes int  `json:"duration_minutes"`
	}

	// SessionEnd is the "end session" response.
	SessionEnd struct {
		DurationSeconds int `json:"duration_seconds"`
		DurationMinutes int `json:"duration_minutes"`
	}

	Stats struct {
		UserID          string           `json:"user_id"`
		TotalSessions   int              `json:"total_sessions"`
		TotalActivities int              `json:"total_activities"`
		TotalSeconds    int              `json:"total_seconds"`
		Sessions        []SessionSummary `json:"sessions"`
	}

	SessionSummary struct {
		SessionID       string     `json:"session_id"`
		StartedAt       time.Time  `json:"started_at"`
		EndedAt         *time.Time `json:"ended_at,omitempty"`
		DurationSeconds int        `json:"duration_seconds"`
		ActivityCount   int        `json:"activity_count"`
	}
)

func (s Session) Open() bool { return s.EndedAt.IsZero() }

// DurationSeconds measures the session against its end time, or against now
// while it is still open.
func (s Session) DurationSeconds(now time.Time) int {
	end := s.EndedAt
	if s.Open() {
		end = now
	}
	return int(end.Sub(s.StartedAt) / time.Second)
}

func (a Activity) Open() bool { return a.EndedAt.IsZero() }
