package inmemdb

import (
	"sync"

	"github.com/darasahq/darasa/core/session"
)

type (
	DB struct {
		sessions   *sessionTable
		activities *activityTable
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	activityTable struct {
		sync.RWMutex
		table map[string]*session.Activity
	}
)

func Open() (*DB, error) {
	db := &DB{
		sessions:   &sessionTable{table: make(map[string]*session.Session)},
		activities: &activityTable{table: make(map[string]*session.Activity)},
	}
	return db, nil
}
