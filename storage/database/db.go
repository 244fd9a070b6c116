package database

import (
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

func Open(conf *core.Config) (*sqlx.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.DatabaseAddress(),
		Path:     conf.Database.Name,
		RawQuery: q.Encode(),
	}
	return sqlx.Open(conf.Database.Engine, u.String())
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS learning_session (
    id         UUID PRIMARY KEY,
    user_id    TEXT        NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS learning_session_user_idx ON learning_session (user_id);
CREATE UNIQUE INDEX IF NOT EXISTS learning_session_open_idx
    ON learning_session (user_id) WHERE ended_at IS NULL;

CREATE TABLE IF NOT EXISTS session_activity (
    id               UUID PRIMARY KEY,
    session_id       UUID        NOT NULL REFERENCES learning_session (id),
    user_id          TEXT        NOT NULL,
    activity_type    TEXT        NOT NULL,
    learning_path_id TEXT,
    module_id        TEXT,
    started_at       TIMESTAMPTZ NOT NULL,
    last_seen_at     TIMESTAMPTZ NOT NULL,
    ended_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS session_activity_session_idx ON session_activity (session_id);
CREATE INDEX IF NOT EXISTS session_activity_user_idx ON session_activity (user_id);
`

func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
