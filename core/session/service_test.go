package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/session"
	"github.com/darasahq/darasa/core/track"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

func setup(t *testing.T) (*session.Service, session.Repository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewSessionRepository(db)
	svc := session.NewService(repo)
	return svc, repo
}

func seedSession(t *testing.T, repo session.Repository, userID string, startedAt time.Time) session.Session {
	sess, err := repo.CreateSession(context.Background(), session.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		StartedAt: startedAt,
	})
	require.NoError(t, err)
	return sess
}

func seedActivity(t *testing.T, repo session.Repository, sess session.Session, typ string, startedAt time.Time) session.Activity {
	act, err := repo.CreateActivity(context.Background(), session.Activity{
		ID:         uuid.New().String(),
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Type:       typ,
		StartedAt:  startedAt,
		LastSeenAt: startedAt,
	})
	require.NoError(t, err)
	return act
}

func Test_Service_Begin(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	sess, existing, err := svc.Begin(ctx, "usr-1")
	require.NoError(t, err)
	assert.False(t, existing)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, sess.Open())

	// a second begin resumes the open session instead of opening another
	again, existing, err := svc.Begin(ctx, "usr-1")
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, sess.ID, again.ID)

	// other users get their own
	other, existing, err := svc.Begin(ctx, "usr-2")
	require.NoError(t, err)
	assert.False(t, existing)
	assert.NotEqual(t, sess.ID, other.ID)

	// after ending, the next begin opens a fresh session
	_, err = svc.End(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	require.NoError(t, err)
	fresh, existing, err := svc.Begin(ctx, "usr-1")
	require.NoError(t, err)
	assert.False(t, existing)
	assert.NotEqual(t, sess.ID, fresh.ID)
}

func Test_Service_RecordActivity(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	sess, _, err := svc.Begin(ctx, "usr-1")
	require.NoError(t, err)

	first, err := svc.RecordActivity(ctx, session.NewActivity{
		UserID:    "usr-1",
		SessionID: sess.ID,
		Type:      track.TypeModule,
		ModuleID:  "mod-1",
	})
	require.NoError(t, err)
	assert.True(t, first.Open())

	// a new activity implicitly closes the previous one
	second, err := svc.RecordActivity(ctx, session.NewActivity{
		UserID:    "usr-1",
		SessionID: sess.ID,
		Type:      track.TypeQuiz,
		ModuleID:  "mod-1",
	})
	require.NoError(t, err)

	open, err := repo.GetOpenActivityBySessionID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)

	acts, err := repo.QueryActivitiesByUserID(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, acts, 2)
	for _, act := range acts {
		if act.ID == first.ID {
			assert.False(t, act.Open(), "superseded activity must be closed")
		}
	}
}

func Test_Service_RecordActivity_badSession(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.RecordActivity(ctx, session.NewActivity{
		UserID:    "usr-1",
		SessionID: uuid.New().String(),
		Type:      track.TypeDashboard,
	})
	assert.Equal(t, session.ErrNotFound, err)

	sess, _, err := svc.Begin(ctx, "usr-1")
	require.NoError(t, err)

	// not the owner
	_, err = svc.RecordActivity(ctx, session.NewActivity{
		UserID:    "usr-2",
		SessionID: sess.ID,
		Type:      track.TypeDashboard,
	})
	assert.Equal(t, session.ErrNotFound, err)

	// closed session
	_, err = svc.End(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	require.NoError(t, err)
	_, err = svc.RecordActivity(ctx, session.NewActivity{
		UserID:    "usr-1",
		SessionID: sess.ID,
		Type:      track.TypeDashboard,
	})
	assert.Equal(t, session.ErrSessionClosed, err)
}

func Test_Service_Heartbeat(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-2 * time.Minute)
	sess := seedSession(t, repo, "usr-1", past)

	// no open activity yet
	err := svc.Heartbeat(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	assert.Equal(t, session.ErrNoOpenActivity, err)

	act := seedActivity(t, repo, sess, track.TypeModule, past)
	require.NoError(t, svc.Heartbeat(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID}))

	open, err := repo.GetOpenActivityBySessionID(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, open.LastSeenAt.After(act.LastSeenAt), "heartbeat must bump last seen")
}

func Test_Service_EndActivity(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-90 * time.Second)
	sess := seedSession(t, repo, "usr-1", past)

	// ending with nothing open is not an error
	res, err := svc.EndActivity(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	require.NoError(t, err)
	assert.False(t, res.ActivityEnded)

	seedActivity(t, repo, sess, track.TypeQuiz, past)
	res, err = svc.EndActivity(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	require.NoError(t, err)
	assert.True(t, res.ActivityEnded)
	assert.InDelta(t, 90, res.DurationSeconds, 2)
	assert.Equal(t, res.DurationSeconds/60, res.DurationMinutes)

	_, err = repo.GetOpenActivityBySessionID(ctx, sess.ID)
	assert.Equal(t, session.ErrNoOpenActivity, err)
}

func Test_Service_End(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-10 * time.Minute)
	sess := seedSession(t, repo, "usr-1", past)
	seedActivity(t, repo, sess, track.TypeModule, past)

	res, err := svc.End(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	require.NoError(t, err)
	assert.InDelta(t, 600, res.DurationSeconds, 2)
	assert.Equal(t, res.DurationSeconds/60, res.DurationMinutes)

	// session closed, open activity closed along with it
	got, err := repo.GetSessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Open())
	_, err = repo.GetOpenActivityBySessionID(ctx, sess.ID)
	assert.Equal(t, session.ErrNoOpenActivity, err)

	// ending twice is rejected
	_, err = svc.End(ctx, session.Ref{UserID: "usr-1", SessionID: sess.ID})
	assert.Equal(t, session.ErrSessionClosed, err)
}

func Test_Service_Stats(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := seedSession(t, repo, "usr-1", now.Add(-2*time.Hour))
	_, err := repo.EndSession(ctx, old.ID, now.Add(-1*time.Hour))
	require.NoError(t, err)
	seedActivity(t, repo, old, track.TypeModule, now.Add(-2*time.Hour))

	current := seedSession(t, repo, "usr-1", now.Add(-5*time.Minute))
	seedActivity(t, repo, current, track.TypeQuiz, now.Add(-5*time.Minute))

	// someone else's history stays out
	seedSession(t, repo, "usr-2", now.Add(-1*time.Hour))

	stats, err := svc.Stats(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", stats.UserID)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalActivities)

	require.Len(t, stats.Sessions, 2)
	// most recent first
	assert.Equal(t, current.ID, stats.Sessions[0].SessionID)
	assert.Nil(t, stats.Sessions[0].EndedAt)
	assert.InDelta(t, 300, stats.Sessions[0].DurationSeconds, 2)
	assert.Equal(t, old.ID, stats.Sessions[1].SessionID)
	require.NotNil(t, stats.Sessions[1].EndedAt)
	assert.Equal(t, 3600, stats.Sessions[1].DurationSeconds)
	assert.Equal(t, 1, stats.Sessions[1].ActivityCount)

	assert.Equal(t, stats.Sessions[0].DurationSeconds+stats.Sessions[1].DurationSeconds, stats.TotalSeconds)

	// a user with no history gets empty aggregates, not an error
	empty, err := svc.Stats(ctx, "usr-9")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalSessions)
	assert.Empty(t, empty.Sessions)
}
