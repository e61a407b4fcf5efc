package controllers

import (
	"net/http"
	"strings"

	"github.com/festworks/festpass-backend/api/middleware"
	"github.com/festworks/festpass-backend/api/responses"
	"github.com/festworks/festpass-backend/api/validators"
	"github.com/festworks/festpass-backend/internal/auth"
	pkgAuth "github.com/festworks/festpass-backend/pkg/auth"
	"github.com/festworks/festpass-backend/pkg/config"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/festworks/festpass-backend/pkg/logger"
)

// AuthController serves registration, login and session lifecycle endpoints.
type AuthController struct {
	service auth.Service
	jwtCfg  config.JWTConfig
	logg    *logger.Logger
}

// NewAuthController constructs the auth controller.
func NewAuthController(service auth.Service, jwtCfg config.JWTConfig, logg *logger.Logger) *AuthController {
	return &AuthController{service: service, jwtCfg: jwtCfg, logg: logg}
}

// Register creates a new attendee account and returns a session.
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	result, err := c.service.Register(r.Context(), req)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, result)
}

// Login exchanges credentials for a token pair.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	result, err := c.service.Login(r.Context(), req)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}

// Refresh rotates the refresh token and mints a new access token.
func (c *AuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	pair, err := c.service.Refresh(r.Context(), req)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, pair)
}

// Logout revokes the current session. It runs behind the auth middleware, so
// the bearer token is known valid; it is re-parsed here only for its jti.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	accessID, err := c.sessionID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	if err := c.service.Logout(r.Context(), accessID); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
}

func (c *AuthController) sessionID(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	claims, err := pkgAuth.ParseAccessToken(c.jwtCfg, token)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" || middleware.UserIDFromContext(r.Context()) == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	return claims.ID, nil
}
