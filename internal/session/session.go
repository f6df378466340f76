package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const CookieName = "session"

var (
	// ErrNoSession means the request carries no session cookie.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession means the cookie is present but cannot be trusted.
	ErrInvalidSession = errors.New("invalid session")
)

type Claims struct {
	UserID int64 `json:"uid"`
	jwtlib.RegisteredClaims
}

// Manager issues and resolves signed session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Issue signs a token for userID.
func (m *Manager) Issue(userID int64) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, errors.New("session secret is not configured")
	}
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse resolves a token to the user id it was issued for.
func (m *Manager) Parse(token string) (int64, error) {
	if token == "" {
		return 0, ErrNoSession
	}
	p := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(m.now),
	)
	var claims Claims
	tok, err := p.ParseWithClaims(token, &claims, func(*jwtlib.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || tok == nil || !tok.Valid {
		return 0, ErrInvalidSession
	}
	if claims.UserID <= 0 {
		return 0, ErrInvalidSession
	}
	return claims.UserID, nil
}

// Start writes a fresh session cookie for userID.
func (m *Manager) Start(c *gin.Context, userID int64) error {
	token, exp, err := m.Issue(userID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(exp.Sub(m.now()).Seconds()), "/", "", m.secure, true)
	return nil
}

// UserID resolves the ambient session of the request.
func (m *Manager) UserID(c *gin.Context) (int64, error) {
	token, err := c.Cookie(CookieName)
	if err != nil {
		return 0, ErrNoSession
	}
	return m.Parse(token)
}

// Terminate clears the session cookie.
func (m *Manager) Terminate(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
}
