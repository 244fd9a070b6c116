package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// GetOpenSessionByUserID returns the user's open session;
		// ErrNotFound when every session of theirs is closed.
		GetOpenSessionByUserID(ctx context.Context, userID string) (Session, error)
		EndSession(ctx context.Context, id string, at time.Time) (Session, error)
		QuerySessionsByUserID(ctx context.Context, userID string) ([]Session, error)

		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		// GetOpenActivityBySessionID returns ErrNoOpenActivity when the
		// session has no open activity.
		GetOpenActivityBySessionID(ctx context.Context, sessionID string) (Activity, error)
		TouchActivity(ctx context.Context, id string, at time.Time) error
		EndActivity(ctx context.Context, id string, at time.Time) (Activity, error)
		QueryActivitiesByUserID(ctx context.Context, userID string) ([]Activity, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Begin opens a session for the user, or returns their already-open session
// (existing == true). At most one session is open per user at any time.
func (svc *Service) Begin(ctx context.Context, userID string) (sess Session, existing bool, err error) {
	sess, err = svc.repo.GetOpenSessionByUserID(ctx, userID)
	if err == nil {
		return sess, true, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Session{}, false, errors.Wrap(err, "looking up open session")
	}

	sess = Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		StartedAt: time.Now().UTC(),
	}
	sess, err = svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, false, errors.Wrap(err, "creating session")
	}
	return sess, false, nil
}

// RecordActivity opens a new activity in the session. A previously open
// activity of the same session is implicitly closed first, so at most one
// activity is open per session at any time.
func (svc *Service) RecordActivity(ctx context.Context, na NewActivity) (Activity, error) {
	sess, err := svc.openSession(ctx, na.UserID, na.SessionID)
	if err != nil {
		return Activity{}, err
	}

	now := time.Now().UTC()
	if err = svc.closeOpenActivity(ctx, sess.ID, now); err != nil {
		return Activity{}, err
	}

	act := Activity{
		ID:             uuid.New().String(),
		SessionID:      sess.ID,
		UserID:         sess.UserID,
		Type:           na.Type,
		LearningPathID: na.LearningPathID,
		ModuleID:       na.ModuleID,
		StartedAt:      now,
		LastSeenAt:     now,
	}
	act, err = svc.repo.CreateActivity(ctx, act)
	if err != nil {
		return Activity{}, errors.Wrap(err, "creating activity")
	}
	return act, nil
}

// Heartbeat marks the session's open activity as still ongoing.
func (svc *Service) Heartbeat(ctx context.Context, ref Ref) error {
	sess, err := svc.openSession(ctx, ref.UserID, ref.SessionID)
	if err != nil {
		return err
	}
	act, err := svc.repo.GetOpenActivityBySessionID(ctx, sess.ID)
	if err != nil {
		return err
	}
	return svc.repo.TouchActivity(ctx, act.ID, time.Now().UTC())
}

// EndActivity closes the session's open activity and reports its duration.
// Ending when nothing is open is not an error: ActivityEnded is false.
func (svc *Service) EndActivity(ctx context.Context, ref Ref) (ActivityEnd, error) {
	sess, err := svc.openSession(ctx, ref.UserID, ref.SessionID)
	if err != nil {
		return ActivityEnd{}, err
	}

	act, err := svc.repo.GetOpenActivityBySessionID(ctx, sess.ID)
	if err != nil {
		if errors.Cause(err) == ErrNoOpenActivity {
			return ActivityEnd{ActivityEnded: false}, nil
		}
		return ActivityEnd{}, err
	}

	now := time.Now().UTC()
	act, err = svc.repo.EndActivity(ctx, act.ID, now)
	if err != nil {
		return ActivityEnd{}, errors.Wrap(err, "ending activity")
	}

	secs := int(act.EndedAt.Sub(act.StartedAt) / time.Second)
	return ActivityEnd{
		ActivityEnded:   true,
		DurationSeconds: secs,
		DurationMinutes: secs / 60,
	}, nil
}

// End closes the session and reports its total duration; any open activity
// is closed first.
func (svc *Service) End(ctx context.Context, ref Ref) (SessionEnd, error) {
	sess, err := svc.openSession(ctx, ref.UserID, ref.SessionID)
	if err != nil {
		return SessionEnd{}, err
	}

	now := time.Now().UTC()
	if err = svc.closeOpenActivity(ctx, sess.ID, now); err != nil {
		return SessionEnd{}, err
	}

	sess, err = svc.repo.EndSession(ctx, sess.ID, now)
	if err != nil {
		return SessionEnd{}, errors.Wrap(err, "ending session")
	}

	secs := int(sess.EndedAt.Sub(sess.StartedAt) / time.Second)
	return SessionEnd{
		DurationSeconds: secs,
		DurationMinutes: secs / 60,
	}, nil
}

// Stats aggregates the user's session/activity history. Read-only.
func (svc *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	sessions, err := svc.repo.QuerySessionsByUserID(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying sessions")
	}
	activities, err := svc.repo.QueryActivitiesByUserID(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying activities")
	}

	actCounts := make(map[string]int, len(sessions))
	for _, act := range activities {
		actCounts[act.SessionID]++
	}

	now := time.Now().UTC()
	stats := Stats{
		UserID:          userID,
		TotalSessions:   len(sessions),
		TotalActivities: len(activities),
		Sessions:        make([]SessionSummary, 0, len(sessions)),
	}
	for _, sess := range sessions {
		summary := SessionSummary{
			SessionID:       sess.ID,
			StartedAt:       sess.StartedAt,
			DurationSeconds: sess.DurationSeconds(now),
			ActivityCount:   actCounts[sess.ID],
		}
		if !sess.Open() {
			ended := sess.EndedAt
			summary.EndedAt = &ended
		}
		stats.TotalSeconds += summary.DurationSeconds
		stats.Sessions = append(stats.Sessions, summary)
	}
	// most recent first
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].StartedAt.After(stats.Sessions[j].StartedAt)
	})
	return stats, nil
}

// openSession loads the session and checks ownership and openness.
func (svc *Service) openSession(ctx context.Context, userID, sessionID string) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != userID {
		// do not leak other users' sessions
		return Session{}, ErrNotFound
	}
	if !sess.Open() {
		return Session{}, ErrSessionClosed
	}
	return sess, nil
}

func (svc *Service) closeOpenActivity(ctx context.Context, sessionID string, at time.Time) error {
	act, err := svc.repo.GetOpenActivityBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Cause(err) == ErrNoOpenActivity {
			return nil
		}
		return err
	}
	if _, err = svc.repo.EndActivity(ctx, act.ID, at); err != nil {
		return errors.Wrap(err, "closing open activity")
	}
	return nil
}
