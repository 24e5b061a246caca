package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "imagelab_session"

	// SessionIDLength is the length of session IDs in bytes.
	SessionIDLength = 16

	// SessionExpiry is how long session cookies last.
	SessionExpiry = 24 * time.Hour
)

type contextKey int

const sessionIDKey contextKey = 0

// GenerateSessionID creates a new cryptographically random session ID.
func GenerateSessionID() (string, error) {
	b := make([]byte, SessionIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetSessionID retrieves the session ID from the request context.
// Returns empty string if no session ID is present.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// setSessionID stores the session ID in the context.
func setSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// ValidateSessionID checks that a session ID has the expected format.
func ValidateSessionID(id string) bool {
	if len(id) != SessionIDLength*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// SessionMiddleware ensures every request has a valid session cookie.
// Invalid or missing session IDs are replaced with fresh ones.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string

		cookie, err := r.Cookie(SessionCookieName)
		if err == nil && ValidateSessionID(cookie.Value) {
			sessionID = cookie.Value
		} else {
			sessionID, err = GenerateSessionID()
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(SessionExpiry.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})
		}

		ctx := setSessionID(r.Context(), sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
