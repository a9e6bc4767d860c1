package session

import "github.com/jmoiron/sqlx"

// OpenRawForTest exposes the underlying handle so tests can corrupt rows.
func OpenRawForTest(s *SQLStore) (*sqlx.DB, error) { return s.db, nil }
