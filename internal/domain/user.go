package domain

type User struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
	Avatar    string `db:"avatar" json:"avatar,omitempty"`
	Phone     string `db:"phone" json:"phone,omitempty"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

// Account is the server-side row behind a User.
type Account struct {
	User
	Hash         string `db:"password_hash"`
	TokenVersion int    `db:"token_version"`
}
