package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"secondhand/internal/domain"
	"secondhand/internal/repos"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *repos.TokenRepo
	Secret []byte
	TTL    time.Duration
}

func NewAuthService(users *repos.UserRepo, tokens *repos.TokenRepo, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{Users: users, Tokens: tokens, Secret: []byte(secret), TTL: ttl}
}

// Claims carry the account's token version so a password change voids older tokens.
type Claims struct {
	Ver int `json:"ver"`
	jwt.RegisteredClaims
}

// UserID is the numeric subject of the token.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

func (s *AuthService) issue(a *domain.Account) (string, error) {
	now := time.Now()
	claims := Claims{
		Ver: a.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(a.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s *AuthService) Register(username, password, email, phone string) (string, domain.User, error) {
	which, err := s.Users.Taken(username, email, phone)
	if err != nil {
		return "", domain.User{}, err
	}
	if which != "" {
		return "", domain.User{}, Conflict(which + " already registered")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.User{}, err
	}
	a, err := s.Users.Create(username, email, phone, string(h))
	if errors.Is(err, repos.ErrDuplicate) {
		return "", domain.User{}, Conflict("username or email already registered")
	}
	if err != nil {
		return "", domain.User{}, err
	}
	tok, err := s.issue(a)
	return tok, a.User, err
}

func (s *AuthService) Login(username, password string) (string, domain.User, error) {
	a, err := s.Users.ByUsername(username)
	if errors.Is(err, repos.ErrNotFound) {
		return "", domain.User{}, ErrBadCreds
	}
	if err != nil {
		return "", domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(password)) != nil {
		return "", domain.User{}, ErrBadCreds
	}
	tok, err := s.issue(a)
	return tok, a.User, err
}

// Authenticate validates a bearer token and returns its account.
// Expired, revoked and superseded tokens are all ErrTokenInvalid.
func (s *AuthService) Authenticate(token string) (domain.User, *Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return domain.User{}, nil, ErrTokenInvalid
	}
	revoked, err := s.Tokens.Revoked(claims.ID)
	if err != nil {
		return domain.User{}, nil, err
	}
	if revoked {
		return domain.User{}, nil, ErrTokenInvalid
	}
	a, err := s.Users.ByID(claims.UserID())
	if errors.Is(err, repos.ErrNotFound) {
		return domain.User{}, nil, ErrTokenInvalid
	}
	if err != nil {
		return domain.User{}, nil, err
	}
	if a.TokenVersion != claims.Ver {
		return domain.User{}, nil, ErrTokenInvalid
	}
	return a.User, claims, nil
}

func (s *AuthService) Me(uid int64) (domain.User, error) {
	a, err := s.Users.ByID(uid)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.User{}, NotFound("user not found")
	}
	if err != nil {
		return domain.User{}, err
	}
	return a.User, nil
}

// ChangePassword requires the current password and a different new one.
// Every token issued before the change stops authenticating.
func (s *AuthService) ChangePassword(uid int64, oldPassword, newPassword string) error {
	a, err := s.Users.ByID(uid)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(oldPassword)) != nil {
		return BadRequest("current password is incorrect")
	}
	if oldPassword == newPassword {
		return BadRequest("new password must differ from the current one")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.Users.SetPassword(uid, string(h))
	return err
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(c *Claims) error {
	if c == nil || c.ID == "" {
		return nil
	}
	exp := time.Now().Add(s.TTL)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return s.Tokens.Revoke(c.ID, exp.UTC().Format(time.RFC3339))
}
