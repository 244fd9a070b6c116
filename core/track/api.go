package track

import (
	"context"
	"time"
)

type (
	// API is the remote session service contract the Controller consumes.
	// services/sessionapi provides the HTTP implementation.
	API interface {
		BeginSession(ctx context.Context, userID string) (BeginResult, error)
		RecordActivity(ctx context.Context, rec ActivityRecord) error
		Heartbeat(ctx context.Context, userID, sessionID string) error
		EndActivity(ctx context.Context, userID, sessionID string) (EndResult, error)
		EndSession(ctx context.Context, userID, sessionID string) (EndResult, error)
		// EndSessionBeacon is the fire-and-forget delivery path used on page
		// teardown. It must return immediately and never report a result.
		EndSessionBeacon(userID, sessionID string)
		SessionStats(ctx context.Context, userID string) (Stats, error)
	}

	BeginResult struct {
		SessionID       string `json:"session_id"`
		ExistingSession bool   `json:"existing_session"`
	}

	ActivityRecord struct {
		UserID         string `json:"user_id"`
		SessionID      string `json:"session_id"`
		Type           string `json:"activity_type"`
		LearningPathID string `json:"learning_path_id,omitempty"`
		ModuleID       string `json:"module_id,omitempty"`
	}

	EndResult struct {
		ActivityEnded   bool `json:"activity_ended"`
		DurationSeconds int  `json:"duration_seconds"`
		DurationMinutes int  `json:"duration_minutes"`
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
