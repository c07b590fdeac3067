package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/iqscore/internal/rbac"
)

// POST /auth/login  { "username": "...", "password": "..." }
// Only the configured admin can log in; quiz takers get session tokens.
func LoginHandler(a *AuthService, adminUser, adminPassHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(adminUser)) == 1
		passErr := bcrypt.CompareHashAndPassword([]byte(adminPassHash), []byte(req.Password))
		if !userOK || passErr != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(req.Username, rbac.RoleAdmin)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}
