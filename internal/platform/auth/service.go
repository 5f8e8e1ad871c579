package auth

import (
	"context"
	"crypto/rand"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"kreisel-backend/internal/platform/apperr"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// 学内メールのみ許可
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@hm\.edu$`)

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

type Service struct {
	store  AccountStore
	deny   Denylist
	secret []byte
	ttl    time.Duration
	clock  Clock
	id     IDGen
}

func NewService(store AccountStore, deny Denylist, secret []byte, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		deny:   deny,
		secret: secret,
		ttl:    ttl,
		clock:  realClock{},
		id:     ulidGen{},
	}
}

type Result struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

func (s *Service) Register(ctx context.Context, fullName, email, password string) (*Result, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" {
		return nil, apperr.Invalid("full_name is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperr.Invalid("only hm.edu addresses are allowed")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// admin で始まるメールは管理者として登録する運用
	role := RoleUser
	if strings.HasPrefix(email, "admin") {
		role = RoleAdmin
	}

	acct := &Account{
		ID:           s.id.NewULID(s.clock.Now()),
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}

	return s.result(acct)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	acct, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	// 存在有無を悟らせないため失敗メッセージは揃える
	if acct == nil {
		return nil, apperr.Unauthorized("email or password incorrect")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("email or password incorrect")
	}

	return s.result(acct)
}

// Logout 残存期間ぶんだけトークンを失効リストに積む。
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return apperr.Invalid("token is required")
	}

	claims := jwt.MapClaims{}
	// 失効登録なので署名検証エラーでも exp さえ読めれば十分
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return apperr.Invalid("malformed token")
	}

	ttl := s.ttl
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = exp.Time.Sub(s.clock.Now())
	}
	return s.deny.Revoke(ctx, token, ttl)
}

func (s *Service) result(acct *Account) (*Result, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   acct.ID,
		"email": acct.Email,
		"role":  acct.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Result{
		UserID:   acct.ID,
		FullName: acct.FullName,
		Email:    acct.Email,
		Role:     acct.Role,
		Token:    signed,
	}, nil
}

func validatePassword(pw string) error {
	if len(pw) < 6 {
		return apperr.Invalid("password must be at least 6 characters")
	}
	if strings.ContainsAny(pw, " \t\r\n") {
		return apperr.Invalid("password must not contain whitespace")
	}
	if !strings.ContainsAny(pw, passwordSpecials) {
		return apperr.Invalid("password must contain a special character")
	}
	return nil
}
