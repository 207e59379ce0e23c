package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"votechain-backend/biometric"
	"votechain-backend/models"
	"votechain-backend/storage"
)

// Auth issues and checks admin session tokens. Admins sign in with either a
// password or a face sample; both paths end in the same short-lived JWT.
type Auth struct {
	store    *storage.Store
	verifier biometric.Verifier
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuth(store *storage.Store, verifier biometric.Verifier, secret string, tokenTTL time.Duration, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{
		store:    store,
		verifier: verifier,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "auth"),
	}
}

// LoginPassword checks the admin's password and returns a session token.
func (a *Auth) LoginPassword(username, password string) (string, error) {
	admin, err := a.store.AdminByUsername(username)
	if err != nil {
		if models.IsKind(err, models.ErrNotFound) {
			return "", models.NewError(models.ErrValidation, "Invalid credentials")
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return "", models.NewError(models.ErrValidation, "Invalid credentials")
	}
	return a.issueToken(username)
}

// LoginFace checks a face sample against the admin's stored template and
// returns a session token on a match.
func (a *Auth) LoginFace(username string, faceSample []byte) (string, error) {
	admin, err := a.store.AdminByUsername(username)
	if err != nil {
		if models.IsKind(err, models.ErrNotFound) {
			return "", models.NewError(models.ErrValidation, "Invalid credentials")
		}
		return "", err
	}
	if len(admin.FaceEncoding) == 0 {
		return "", models.NewError(models.ErrValidation, "Face login not set up for this admin")
	}
	ok, err := a.verifier.Matches(biometric.DecodeTemplate(admin.FaceEncoding), faceSample)
	if err != nil {
		return "", models.WrapError(models.ErrValidation, "Face could not be processed", err)
	}
	if !ok {
		return "", models.NewError(models.ErrValidation, "Face mismatch")
	}
	return a.issueToken(username)
}

func (a *Auth) issueToken(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", models.WrapError(models.ErrValidation, "cannot issue token", err)
	}
	a.logger.Info("admin signed in", "username", username)
	return token, nil
}

// checkToken validates a bearer token and returns the admin username.
func (a *Auth) checkToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.NewError(models.ErrValidation, "unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", models.WrapError(models.ErrValidation, "Invalid or expired token", err)
	}
	return claims.Subject, nil
}

// adminRequired wraps a handler so it only runs with a valid admin token.
func (a *Auth) adminRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeErrorStatus(w, http.StatusUnauthorized, models.NewError(models.ErrValidation, "Authorization required"))
			return
		}
		username, err := a.checkToken(raw)
		if err != nil {
			writeErrorStatus(w, http.StatusUnauthorized, err)
			return
		}
		r.Header.Set("X-Admin-User", username)
		next(w, r)
	}
}
