package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"secondhand/internal/domain"
)

var (
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)
	rePhone    = regexp.MustCompile(`^[0-9+\- ]{3,32}$`)
	reKeyword  = regexp.MustCompile(`^[\p{L}\p{N} _'\-]{1,50}$`)
)

const (
	MaxPrice    = 99999999.99
	MaxQuantity = 999
	MaxPageSize = 100
)

func Username(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reUsername.MatchString(s)
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 128 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Phone is optional: an empty value is accepted.
func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, rePhone.MatchString(s)
}

// Password enforces the length window accepted at registration.
func Password(s string) bool {
	l := len(s)
	return l >= 6 && l <= 128
}

// Keyword trims and clamps a search term; empty means "no filter".
func Keyword(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	if len([]rune(s)) > 50 {
		s = string([]rune(s)[:50])
	}
	return s, reKeyword.MatchString(s)
}

func ProductName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > 128 {
		return "", false
	}
	return s, true
}

func Category(s string) (domain.Category, bool) {
	c := domain.Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Price accepts positive amounts with at most two decimals.
func Price(p float64) bool {
	if p <= 0 || p > MaxPrice || math.IsNaN(p) {
		return false
	}
	cents := p * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

func Stock(n int) bool { return n >= 0 && n <= 1_000_000 }

func Quantity(n int) bool { return n >= 1 && n <= MaxQuantity }

func PaymentMethod(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "alipay", "wechat", "balance":
		return s, true
	}
	return "", false
}

// OrderStatus parses a list filter; "" and "all" mean no filter.
func OrderStatus(s string) (domain.OrderStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", true
	}
	st := domain.OrderStatus(s)
	return st, st.Valid()
}

// Paging parses page/pageSize query values and clamps them.
func Paging(page, pageSize string, defSize int) (int, int) {
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil || p < 1 {
		p = 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(pageSize))
	if err != nil || n < 1 {
		n = defSize
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	return p, n
}

// ID parses a positive numeric identifier.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
