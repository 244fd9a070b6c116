package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

type sessionRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	StartedAt time.Time    `db:"started_at"`
	EndedAt   sql.NullTime `db:"ended_at"`
}

func (r sessionRow) model() session.Session {
	sess := session.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		StartedAt: r.StartedAt.UTC(),
	}
	if r.EndedAt.Valid {
		sess.EndedAt = r.EndedAt.Time.UTC()
	}
	return sess
}

type activityRow struct {
	ID             string         `db:"id"`
	SessionID      string         `db:"session_id"`
	UserID         string         `db:"user_id"`
	Type           string         `db:"activity_type"`
	LearningPathID sql.NullString `db:"learning_path_id"`
	ModuleID       sql.NullString `db:"module_id"`
	StartedAt      time.Time      `db:"started_at"`
	LastSeenAt     time.Time      `db:"last_seen_at"`
	EndedAt        sql.NullTime   `db:"ended_at"`
}

func (r activityRow) model() session.Activity {
	act := session.Activity{
		ID:             r.ID,
		SessionID:      r.SessionID,
		UserID:         r.UserID,
		Type:           r.Type,
		LearningPathID: r.LearningPathID.String,
		ModuleID:       r.ModuleID.String,
		StartedAt:      r.StartedAt.UTC(),
		LastSeenAt:     r.LastSeenAt.UTC(),
	}
	if r.EndedAt.Valid {
		act.EndedAt = r.EndedAt.Time.UTC()
	}
	return act
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	const q = `INSERT INTO learning_session (id, user_id, started_at) VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, q, sess.ID, sess.UserID, sess.StartedAt); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	const q = `SELECT id, user_id, started_at, ended_at FROM learning_session WHERE id = $1`
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "getting session")
	}
	return row.model(), nil
}

func (repo *sessionRepository) GetOpenSessionByUserID(ctx context.Context, userID string) (session.Session, error) {
	const q = `SELECT id, user_id, started_at, ended_at FROM learning_session
               WHERE user_id = $1 AND ended_at IS NULL`
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, q, userID); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "getting open session")
	}
	return row.model(), nil
}

func (repo *sessionRepository) EndSession(ctx context.Context, id string, at time.Time) (session.Session, error) {
	const q = `UPDATE learning_session SET ended_at = $2 WHERE id = $1
               RETURNING id, user_id, started_at, ended_at`
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, q, id, at); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "ending session")
	}
	return row.model(), nil
}

func (repo *sessionRepository) QuerySessionsByUserID(ctx context.Context, userID string) ([]session.Session, error) {
	const q = `SELECT id, user_id, started_at, ended_at FROM learning_session
               WHERE user_id = $1 ORDER BY started_at`
	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.model())
	}
	return sessions, nil
}

func (repo *sessionRepository) CreateActivity(ctx context.Context, act session.Activity) (session.Activity, error) {
	const q = `INSERT INTO session_activity
               (id, session_id, user_id, activity_type, learning_path_id, module_id, started_at, last_seen_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		act.ID, act.SessionID, act.UserID, act.Type,
		nullString(act.LearningPathID), nullString(act.ModuleID),
		act.StartedAt, act.LastSeenAt,
	)
	if err != nil {
		return session.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo *sessionRepository) GetOpenActivityBySessionID(ctx context.Context, sessionID string) (session.Activity, error) {
	const q = `SELECT id, session_id, user_id, activity_type, learning_path_id, module_id,
                      started_at, last_seen_at, ended_at
               FROM session_activity WHERE session_id = $1 AND ended_at IS NULL`
	var row activityRow
	if err := repo.db.GetContext(ctx, &row, q, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return session.Activity{}, session.ErrNoOpenActivity
		}
		return session.Activity{}, errors.Wrap(err, "getting open activity")
	}
	return row.model(), nil
}

func (repo *sessionRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE session_activity SET last_seen_at = $2 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return errors.Wrap(err, "touching activity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNoOpenActivity
	}
	return nil
}

func (repo *sessionRepository) EndActivity(ctx context.Context, id string, at time.Time) (session.Activity, error) {
	const q = `UPDATE session_activity SET ended_at = $2, last_seen_at = $2 WHERE id = $1
               RETURNING id, session_id, user_id, activity_type, learning_path_id, module_id,
                         started_at, last_seen_at, ended_at`
	var row activityRow
	if err := repo.db.GetContext(ctx, &row, q, id, at); err != nil {
		if err == sql.ErrNoRows {
			return session.Activity{}, session.ErrNoOpenActivity
		}
		return session.Activity{}, errors.Wrap(err, "ending activity")
	}
	return row.model(), nil
}

func (repo *sessionRepository) QueryActivitiesByUserID(ctx context.Context, userID string) ([]session.Activity, error) {
	const q = `SELECT id, session_id, user_id, activity_type, learning_path_id, module_id,
                      started_at, last_seen_at, ended_at
               FROM session_activity WHERE user_id = $1 ORDER BY started_at`
	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	activities := make([]session.Activity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, row.model())
	}
	return activities, nil
}
