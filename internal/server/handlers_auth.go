package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/models"
)

// signClientToken creates a signed HMAC-SHA256 JWT for the given service client.
func signClientToken(client *models.ServiceClient, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  client.ClientID,
		"name": client.Name,
		"iss":  "blink-server",
		"iat":  now.Unix(),
		"exp":  now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// handleAuthToken handles POST /api/auth/token — exchange client
// credentials for a bearer token.
func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		WriteError(w, http.StatusBadRequest, "client_id and client_secret are required")
		return
	}

	ctx := r.Context()
	store := s.app.Storage.InternalStore()

	client, err := store.GetClient(ctx, req.ClientID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid client credentials")
		return
	}
	if client.Disabled {
		WriteError(w, http.StatusUnauthorized, "client disabled")
		return
	}

	secretBytes := []byte(req.ClientSecret)
	if len(secretBytes) > 72 {
		secretBytes = secretBytes[:72]
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), secretBytes); err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid client credentials")
		return
	}

	token, err := signClientToken(client, &s.app.Config.Auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign client token")
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	s.logger.Debug().Str("client_id", client.ClientID).Msg("Issued client token")

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(s.app.Config.Auth.GetTokenExpiry().Seconds()),
	})
}
