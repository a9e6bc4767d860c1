package repos

import (
	"database/sql"
	"errors"

	"secondhand/internal/domain"

	"github.com/jmoiron/sqlx"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, username, email, COALESCE(phone,'') AS phone, COALESCE(avatar,'') AS avatar,
  password_hash, token_version, created_at`

func (r *UserRepo) one(where string, arg any) (*domain.Account, error) {
	var a domain.Account
	err := r.DB.Get(&a, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE `+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *UserRepo) ByUsername(username string) (*domain.Account, error) {
	return r.one(`LOWER(username) = LOWER(?)`, username)
}

func (r *UserRepo) ByID(id int64) (*domain.Account, error) {
	return r.one(`id = ?`, id)
}

// Taken reports which of username/email/phone is already registered ("" if none).
func (r *UserRepo) Taken(username, email, phone string) (string, error) {
	checks := []struct{ field, where, val string }{
		{"username", `LOWER(username) = LOWER(?)`, username},
		{"email", `LOWER(email) = LOWER(?)`, email},
		{"phone", `phone = ?`, phone},
	}
	for _, c := range checks {
		if c.val == "" {
			continue
		}
		var n int
		if err := r.DB.Get(&n, r.DB.Rebind(`SELECT COUNT(*) FROM users WHERE `+c.where), c.val); err != nil {
			return "", err
		}
		if n > 0 {
			return c.field, nil
		}
	}
	return "", nil
}

// Create inserts a new account and returns it with its assigned id.
func (r *UserRepo) Create(username, email, phone, hash string) (*domain.Account, error) {
	now := Now()
	var id int64
	err := r.DB.Get(&id, r.DB.Rebind(`
		INSERT INTO users(username,email,phone,password_hash,created_at,updated_at)
		VALUES(?,?,?,?,?,?)
		RETURNING id
	`), username, email, nullString(phone), hash, now, now)
	if isUnique(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		User: domain.User{ID: id, Username: username, Email: email, Phone: phone, CreatedAt: now},
		Hash: hash,
	}, nil
}

// SetPassword replaces the hash and bumps token_version, which invalidates
// every bearer token issued before the change.
func (r *UserRepo) SetPassword(id int64, hash string) (int, error) {
	var v int
	err := r.DB.Get(&v, r.DB.Rebind(`
		UPDATE users SET password_hash = ?, token_version = token_version + 1, updated_at = ?
		WHERE id = ?
		RETURNING token_version
	`), hash, Now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return v, err
}
