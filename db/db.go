// Package db stores client-side profiles: the user's avatar reference and
// their friend list. Friends are a local-only annotation, never shared
// with the server beyond the handshake announcement.
package db

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"relaychat/models"
)

var ErrNoRows = errors.New("no rows found")

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			name TEXT PRIMARY KEY,
			avatar TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS friends (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			friend TEXT NOT NULL,
			UNIQUE(owner, friend)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_friends_owner ON friends(owner)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// SaveProfile upserts the profile row and makes the stored friend set
// match user.Friends.
func (db *DB) SaveProfile(user models.User) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO profiles (name, avatar) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET avatar = excluded.avatar",
		user.Name, user.Avatar,
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM friends WHERE owner = ?", user.Name); err != nil {
		return err
	}
	for _, friend := range user.Friends {
		if _, err := tx.Exec("INSERT OR IGNORE INTO friends (owner, friend) VALUES (?, ?)", user.Name, friend); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadProfile returns the saved profile for name, friends included, or
// ErrNoRows if none exists.
func (db *DB) LoadProfile(name string) (models.User, error) {
	var user models.User
	err := db.conn.QueryRow("SELECT name, avatar FROM profiles WHERE name = ?", name).Scan(&user.Name, &user.Avatar)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNoRows
	}
	if err != nil {
		return models.User{}, err
	}

	rows, err := db.conn.Query("SELECT friend FROM friends WHERE owner = ? ORDER BY friend", name)
	if err != nil {
		return models.User{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return models.User{}, err
		}
		user.Friends = append(user.Friends, friend)
	}

	return user, rows.Err()
}

// ProfileExists reports whether a profile is saved for name.
func (db *DB) ProfileExists(name string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM profiles WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddFriend records friend under owner's friend set.
func (db *DB) AddFriend(owner, friend string) error {
	if _, err := db.conn.Exec("INSERT OR IGNORE INTO profiles (name) VALUES (?)", owner); err != nil {
		return err
	}
	_, err := db.conn.Exec("INSERT OR IGNORE INTO friends (owner, friend) VALUES (?, ?)", owner, friend)
	return err
}

// HasFriend reports whether friend is already in owner's friend set.
func (db *DB) HasFriend(owner, friend string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM friends WHERE owner = ? AND friend = ?", owner, friend).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
