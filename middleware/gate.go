package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	authedge "github.com/authedge/authedge"
)

// Gate authenticates the session token carried by the request. Requests
// without a token pass through unauthenticated; downstream handlers
// guard themselves with [RequireIdentity]. A request carrying different
// tokens in the cookie and the header is malformed and rejected.
//
// When the session's sliding expiration has lapsed but the hard ceiling
// has not, the gate refreshes the session transparently and the request
// proceeds. A token whose session has hit the hard ceiling is dropped:
// the cookie is cleared and the request proceeds unauthenticated, as if
// no token had been presented. Unknown tokens are rejected outright.
func Gate(engine *authedge.Engine, cfg authedge.TransportConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := resolveToken(r, cfg)
			if err != nil {
				http.Error(w, "ambiguous session token", http.StatusBadRequest)
				return
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, authedge.ErrSessionExpired):
					clearCookie(w, cfg)
					next.ServeHTTP(w, r)
				case errors.Is(err, authedge.ErrSessionNotFound):
					clearCookie(w, cfg)
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				default:
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				}
				return
			}

			// The raw token never changes on refresh, but the cookie
			// deadline tracks the slid expiration.
			if _, fromCookie := cookieToken(r, cfg); fromCookie {
				setCookie(w, cfg, token, sess.ExpiresAt)
			}

			ctx := authedge.WithIdentity(r.Context(), authedge.Identity{
				AccountID: sess.AccountID,
				SessionID: sess.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that carry no authenticated identity.
// Place it after [Gate] on routes that must not serve anonymously.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authedge.IdentityFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveToken returns the session token presented by the request, or
// an error when the cookie and the header disagree.
func resolveToken(r *http.Request, cfg authedge.TransportConfig) (string, error) {
	header := HeaderToken(r, cfg)
	cookie, ok := cookieToken(r, cfg)
	if !ok {
		return header, nil
	}
	if header != "" && header != cookie {
		return "", authedge.ErrAmbiguousToken
	}
	return cookie, nil
}

// HeaderToken extracts the session token from the configured header,
// stripping a Bearer prefix in any case. A bare token without the
// prefix is accepted as well.
func HeaderToken(r *http.Request, cfg authedge.TransportConfig) string {
	value := strings.TrimSpace(r.Header.Get(cfg.HeaderName))
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

func cookieToken(r *http.Request, cfg authedge.TransportConfig) (string, bool) {
	c, err := r.Cookie(cfg.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func setCookie(w http.ResponseWriter, cfg authedge.TransportConfig, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearCookie(w http.ResponseWriter, cfg authedge.TransportConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
