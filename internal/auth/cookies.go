package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "julo_access"
	RefreshCookieName = "julo_refresh"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, cookie(cfg, AccessCookieName, accessToken, "/", int(accessTTL.Seconds())))
	http.SetCookie(w, cookie(cfg, RefreshCookieName, refreshToken, refreshCookiePath, int(refreshTTL.Seconds())))
}

func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cookie(cfg, AccessCookieName, "", "/", -1))
	http.SetCookie(w, cookie(cfg, RefreshCookieName, "", refreshCookiePath, -1))
}

// The refresh token is only sent to the auth endpoints.
const refreshCookiePath = "/v1/auth"

func cookie(cfg CookieConfig, name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
