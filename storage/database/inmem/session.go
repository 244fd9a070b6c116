package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/darasahq/darasa/core/session"
)

type sessionRepository struct {
	sessions   *sessionTable
	activities *activityTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{sessions: db.sessions, activities: db.activities}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.sessions.Lock()
	defer repo.sessions.Unlock()

	repo.sessions.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, id string) (session.Session, error) {
	repo.sessions.RLock()
	defer repo.sessions.RUnlock()

	if sess, ok := repo.sessions.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) GetOpenSessionByUserID(_ context.Context, userID string) (session.Session, error) {
	repo.sessions.RLock()
	defer repo.sessions.RUnlock()

	for _, sess := range repo.sessions.table {
		if sess.UserID == userID && sess.Open() {
			return *sess, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) EndSession(_ context.Context, id string, at time.Time) (session.Session, error) {
	repo.sessions.Lock()
	defer repo.sessions.Unlock()

	sess, ok := repo.sessions.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.EndedAt = at
	return *sess, nil
}

func (repo *sessionRepository) QuerySessionsByUserID(_ context.Context, userID string) ([]session.Session, error) {
	repo.sessions.RLock()
	defer repo.sessions.RUnlock()

	sessions := make([]session.Session, 0)
	for _, sess := range repo.sessions.table {
		if sess.UserID == userID {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.Before(sessions[j].StartedAt) })
	return sessions, nil
}

func (repo *sessionRepository) CreateActivity(_ context.Context, act session.Activity) (session.Activity, error) {
	repo.activities.Lock()
	defer repo.activities.Unlock()

	repo.activities.table[act.ID] = &act
	return act, nil
}

func (repo *sessionRepository) GetOpenActivityBySessionID(_ context.Context, sessionID string) (session.Activity, error) {
	repo.activities.RLock()
	defer repo.activities.RUnlock()

	for _, act := range repo.activities.table {
		if act.SessionID == sessionID && act.Open() {
			return *act, nil
		}
	}
	return session.Activity{}, session.ErrNoOpenActivity
}

func (repo *sessionRepository) TouchActivity(_ context.Context, id string, at time.Time) error {
	repo.activities.Lock()
	defer repo.activities.Unlock()

	act, ok := repo.activities.table[id]
	if !ok {
		return session.ErrNoOpenActivity
	}
	act.LastSeenAt = at
	return nil
}

func (repo *sessionRepository) EndActivity(_ context.Context, id string, at time.Time) (session.Activity, error) {
	repo.activities.Lock()
	defer repo.activities.Unlock()

	act, ok := repo.activities.table[id]
	if !ok {
		return session.Activity{}, session.ErrNoOpenActivity
	}
	act.EndedAt = at
	act.LastSeenAt = at
	return *act, nil
}

func (repo *sessionRepository) QueryActivitiesByUserID(_ context.Context, userID string) ([]session.Activity, error) {
	repo.activities.RLock()
	defer repo.activities.RUnlock()

	activities := make([]session.Activity, 0)
	for _, act := range repo.activities.table {
		if act.UserID == userID {
			activities = append(activities, *act)
		}
	}
	sort.Slice(activities, func(i, j int) bool { return activities[i].StartedAt.Before(activities[j].StartedAt) })
	return activities, nil
}
