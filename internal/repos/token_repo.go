package repos

import "github.com/jmoiron/sqlx"

// TokenRepo tracks bearer token ids revoked by logout until they expire.
type TokenRepo struct{ db *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) Revoke(jti, expiresAt string) error {
	_, err := r.db.Exec(r.db.Rebind(`
		INSERT INTO revoked_tokens(jti, expires_at) VALUES(?, ?)
		ON CONFLICT(jti) DO NOTHING
	`), jti, expiresAt)
	return err
}

func (r *TokenRepo) Revoked(jti string) (bool, error) {
	var n int
	err := r.db.Get(&n, r.db.Rebind(`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`), jti)
	return n > 0, err
}

// Purge drops entries whose token has expired anyway.
func (r *TokenRepo) Purge(now string) (int64, error) {
	res, err := r.db.Exec(r.db.Rebind(`DELETE FROM revoked_tokens WHERE expires_at < ?`), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
