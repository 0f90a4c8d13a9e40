// Package session issues and resolves anonymous voter identities carried in
// a signed cookie.
package session

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const issuer = "livepoll"

type Config struct {
	Secret     []byte
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
}

type Resolver struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	sameSite   http.SameSite
	now        func() time.Time
}

func NewResolver(cfg Config) (*Resolver, error) {
	secret := cfg.Secret
	if len(secret) == 0 {
		slog.Warn("session secret not set, generating an ephemeral one")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "livepoll_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}

	return &Resolver{
		secret:     secret,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
		sameSite:   cfg.SameSite,
		now:        time.Now,
	}, nil
}

// Resolve returns the identity carried by the request's session cookie.
func (s *Resolver) Resolve(r *http.Request) (domain.Identity, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return "", domain.ErrSessionNotFound
	}
	return s.parseToken(cookie.Value)
}

// Issue creates a new identity and the cookie that carries it.
func (s *Resolver) Issue() (domain.Identity, *http.Cookie, error) {
	identity := domain.Identity(uuid.NewString())
	token, err := s.signToken(identity)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return identity, s.cookie(token), nil
}

// Ensure resolves the request's identity, issuing and setting a new session
// cookie when the request has none or it is invalid.
func (s *Resolver) Ensure(w http.ResponseWriter, r *http.Request) (domain.Identity, error) {
	if identity, err := s.Resolve(r); err == nil {
		return identity, nil
	}

	identity, cookie, err := s.Issue()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, cookie)
	return identity, nil
}

// Middleware makes sure every page load carries a session before the client
// opens its WebSocket.
func (s *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.Ensure(w, r); err != nil {
			slog.Error("failed to issue session", "error", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Resolver) signToken(identity domain.Identity) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   string(identity),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Resolver) parseToken(raw string) (domain.Identity, error) {
	claims := &jwt.RegisteredClaims{}
	keyFunc := func(*jwt.Token) (any, error) {
		return s.secret, nil
	}
	_, err := jwt.ParseWithClaims(raw, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSessionNotFound, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: invalid subject", domain.ErrSessionNotFound)
	}
	return domain.Identity(id.String()), nil
}

func (s *Resolver) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: s.sameSite,
		MaxAge:   int(s.ttl / time.Second),
	}
}
