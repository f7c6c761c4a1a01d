package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
)

// AdminAuth гейтит админский контур HTTP Basic-аутентификацией.
// Сравнение учётных данных идёт по SHA-256-дайджестам через hmac.Equal,
// чтобы исключить утечку по времени сравнения.
type AdminAuth struct {
	loginHash    [32]byte
	passwordHash [32]byte
	enabled      bool
}

// NewAdminAuth создаёт middleware для указанных учётных данных. Пустой логин
// отключает проверку: удобно для локальной разработки, в продакшене логин
// обязан быть задан конфигурацией.
func NewAdminAuth(login, password string) *AdminAuth {
	return &AdminAuth{
		loginHash:    sha256.Sum256([]byte(login)),
		passwordHash: sha256.Sum256([]byte(password)),
		enabled:      login != "",
	}
}

// Middleware проверяет Basic-учётные данные запроса.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		login, password, ok := r.BasicAuth()
		if !ok || !a.verify(login, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) verify(login, password string) bool {
	lh := sha256.Sum256([]byte(login))
	ph := sha256.Sum256([]byte(password))

	loginOK := hmac.Equal(lh[:], a.loginHash[:])
	passwordOK := hmac.Equal(ph[:], a.passwordHash[:])

	return loginOK && passwordOK
}
