package testutil

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/tutorhub/backend/core"
	"github.com/tutorhub/backend/core/user"
	"github.com/tutorhub/backend/storage/database"
)

var (
	confOnce sync.Once
	conf     *core.Config
)

// Config returns the shared TEST-mode configuration.
func Config(t *testing.T) *core.Config {
	t.Helper()
	confOnce.Do(func() {
		conf = core.NewConfig()
		if !conf.TestMode {
			conf.TestMode = true
			conf.Database.Name += "_test"
		}
		// debug mode changes the API error payloads
		conf.Debug = false
	})
	return conf
}

// PrepareDB opens the test database, migrates it and empties all tables.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := Config(t)

	if err := database.CreateIfNotExist(cfg); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

// ResetDB empties all application tables.
func ResetDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec("TRUNCATE users, profiles, program_roles, base_costs RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tstamp = tstamp.Truncate(time.Microsecond) // postgres resolution
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProfile(t *testing.T, repo user.Repository, userID int, w9File string, ndaSigned bool) user.Profile {
	t.Helper()
	prof, err := repo.CreateProfile(context.Background(), user.Profile{
		UserID:    userID,
		W9File:    w9File,
		NDASigned: ndaSigned,
	})
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return prof
}
