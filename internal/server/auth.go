package server

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	sessionCookieName = "session_id"
	sessionDuration   = 8 * time.Hour
)

// session pairs an opaque cookie ID with the identity provider's access
// token, which becomes the upstream bearer for browser-origin submissions.
// Sessions live in memory only; nothing survives a restart.
type session struct {
	Token     string
	ExpiresAt time.Time
}

// sessionStore is an in-memory session table guarded by a mutex.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]session)}
}

func (s *sessionStore) create(token string, expiresAt time.Time) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = session{Token: token, ExpiresAt: expiresAt}
	s.mu.Unlock()
	return id
}

func (s *sessionStore) get(id string) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return session{}, false
	}
	return sess, true
}

func (s *sessionStore) delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// RequireBearer extracts the upstream bearer token from the Authorization
// header, falling back to the login session cookie, and attaches it to the
// request context. Missing or malformed credentials yield 401.
func (s *Server) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || strings.TrimSpace(auth[len(prefix):]) == "" {
				respondError(w, http.StatusUnauthorized, "malformed Authorization header")
				return
			}
			token := strings.TrimSpace(auth[len(prefix):])
			next.ServeHTTP(w, r.WithContext(withBearer(r.Context(), token)))
			return
		}

		if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
			if sess, ok := s.sessions.get(c.Value); ok {
				next.ServeHTTP(w, r.WithContext(withBearer(r.Context(), sess.Token)))
				return
			}
		}

		respondError(w, http.StatusUnauthorized, "authentication required")
	})
}

// --- OAuth: identity provider login flow ---

func (s *Server) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.config.OAuthClientID,
		ClientSecret: s.config.OAuthClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  s.config.OAuthAuthURL,
			TokenURL: s.config.OAuthTokenURL,
		},
		RedirectURL: s.config.BaseURL + "/auth/callback",
		Scopes:      s.config.OAuthScopes,
	}
}

// HandleLogin redirects to the configured identity provider.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if s.config.OAuthClientID == "" {
		respondError(w, http.StatusNotImplemented, "login not configured")
		return
	}
	state := generateRandomHex(32)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.config.BaseURL, "https"),
	})
	http.Redirect(w, r, s.oauthConfig().AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the authorization-code exchange and stores the
// access token in a new session.
func (s *Server) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if err := s.validateOAuthState(r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.oauthConfig().Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Printf("ERROR: oauth exchange: %v", err)
		respondError(w, http.StatusBadRequest, "OAuth error")
		return
	}

	expiry := token.Expiry
	if expiry.IsZero() || expiry.After(time.Now().Add(sessionDuration)) {
		expiry = time.Now().Add(sessionDuration)
	}
	sessID := s.sessions.create(token.AccessToken, expiry)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessID,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   strings.HasPrefix(s.config.BaseURL, "https"),
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout drops the session.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		s.sessions.delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) validateOAuthState(r *http.Request) error {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		return fmt.Errorf("missing OAuth state cookie")
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		return fmt.Errorf("OAuth state mismatch")
	}
	return nil
}

// generateRandomHex creates a random hex-encoded string for OAuth state.
func generateRandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// used by handlers that decode request bodies
func decodeJSON(r *http.Request, v any, maxBytes int64) error {
	body := http.MaxBytesReader(nil, r.Body, maxBytes)
	return json.NewDecoder(body).Decode(v)
}
