// internal/handlers/session.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/teamboningen/yunoDaifugo/internal/auth"
)

// SessionCookieName carries the session token between reconnects.
const SessionCookieName = "session_token"

// EnsureSession resolves the occupant behind a request. A valid token from the
// session_token cookie or the token query parameter keeps its occupant id;
// otherwise a new occupant id is minted and the cookie is set on w.
func EnsureSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			token = cookie.Value
		}
	}

	if token != "" {
		if occupantID, err := auth.ParseSessionToken(token); err == nil {
			return occupantID, token, nil
		}
	}

	occupantID := uuid.New()
	newToken, err := auth.CreateSessionToken(occupantID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to create session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    newToken,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return occupantID, newToken, nil
}
