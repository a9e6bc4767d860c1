package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"secondhand/internal/domain"
	applog "secondhand/internal/log"
)

const (
	keyToken = "auth_token"
	keyUser  = "user_info"
)

// errMoved aborts a conditional write whose token is no longer stored.
var errMoved = errors.New("session: token changed")

// SQLStore keeps the session in a local SQLite key/value table so it
// survives restarts of the client.
type SQLStore struct {
	mu   sync.RWMutex
	db   *sqlx.DB
	subs subscribers
}

// OpenSQLStore opens (creating if needed) the state database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("state dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS client_state(
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) get(key string) (string, bool) {
	var v string
	err := s.db.Get(&v, `SELECT value FROM client_state WHERE key = ?`, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			applog.Fail("session.read", err, map[string]any{"key": key})
		}
		return "", false
	}
	return v, true
}

func (s *SQLStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.get(keyToken)
	return v, ok && v != ""
}

// User decodes the stored user; an unreadable value counts as absent.
func (s *SQLStore) User() (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user()
}

func (s *SQLStore) user() (*domain.User, bool) {
	v, ok := s.get(keyUser)
	if !ok {
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal([]byte(v), &u); err != nil {
		applog.Fail("session.user.corrupt", err, nil)
		return nil, false
	}
	return &u, true
}

func put(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT INTO client_state(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// write runs fn in one transaction under the store lock.
func (s *SQLStore) write(fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) SetToken(token string) error {
	if err := s.write(func(tx *sqlx.Tx) error { return put(tx, keyToken, token) }); err != nil {
		return err
	}
	u, _ := s.User()
	s.subs.emit(Change{Token: token, User: u})
	return nil
}

func (s *SQLStore) SetUser(u domain.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.write(func(tx *sqlx.Tx) error { return put(tx, keyUser, string(b)) }); err != nil {
		return err
	}
	tok, _ := s.Token()
	s.subs.emit(Change{Token: tok, User: copyUser(&u)})
	return nil
}

func (s *SQLStore) SetSession(token string, u domain.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	err = s.write(func(tx *sqlx.Tx) error {
		if err := put(tx, keyToken, token); err != nil {
			return err
		}
		return put(tx, keyUser, string(b))
	})
	if err != nil {
		return err
	}
	s.subs.emit(Change{Token: token, User: copyUser(&u)})
	return nil
}

func (s *SQLStore) Clear() error {
	err := s.write(func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`DELETE FROM client_state WHERE key IN (?, ?)`, keyToken, keyUser)
		return err
	})
	if err != nil {
		return err
	}
	s.subs.emit(Change{Cleared: true})
	return nil
}

func storedToken(tx *sqlx.Tx) (string, error) {
	var v string
	err := tx.Get(&v, `SELECT value FROM client_state WHERE key = ?`, keyToken)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// writeIf runs fn in one transaction only while token is still stored.
func (s *SQLStore) writeIf(token string, fn func(tx *sqlx.Tx) error) (bool, error) {
	err := s.write(func(tx *sqlx.Tx) error {
		cur, err := storedToken(tx)
		if err != nil {
			return err
		}
		if cur != token {
			return errMoved
		}
		return fn(tx)
	})
	if errors.Is(err, errMoved) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLStore) ReplaceUser(token string, u domain.User) (bool, error) {
	if token == "" {
		return false, nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return false, err
	}
	ok, err := s.writeIf(token, func(tx *sqlx.Tx) error { return put(tx, keyUser, string(b)) })
	if ok {
		s.subs.emit(Change{Token: token, User: copyUser(&u)})
	}
	return ok, err
}

func (s *SQLStore) ClearIf(token string) (bool, error) {
	ok, err := s.writeIf(token, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`DELETE FROM client_state WHERE key IN (?, ?)`, keyToken, keyUser)
		return err
	})
	if ok {
		s.subs.emit(Change{Cleared: true})
	}
	return ok, err
}

func (s *SQLStore) Subscribe(fn func(Change)) func() { return s.subs.add(fn) }
