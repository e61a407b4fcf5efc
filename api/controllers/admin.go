package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/festworks/festpass-backend/api/responses"
	"github.com/festworks/festpass-backend/api/validators"
	"github.com/festworks/festpass-backend/internal/ingest"
	"github.com/festworks/festpass-backend/pkg/config"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/festworks/festpass-backend/pkg/pagination"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminController serves the organizer console: the fleet-wide pending queue,
// on-demand syncs for individual users, and the whitelist cache bust.
type AdminController struct {
	ingest ingest.Service
	app    config.AppConfig
	admin  config.AdminConfig
	logg   *logger.Logger
}

// NewAdminController constructs the admin controller.
func NewAdminController(ingestService ingest.Service, app config.AppConfig, admin config.AdminConfig, logg *logger.Logger) *AdminController {
	return &AdminController{ingest: ingestService, app: app, admin: admin, logg: logg}
}

// PendingQueue pages through successful payments that have not produced an
// owned pass, across all users.
func (c *AdminController) PendingQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	page, err := c.ingest.PendingQueue(r.Context(), pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	})
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, page)
}

// SyncUser runs a reconciliation for the targeted user, with debug counters.
func (c *AdminController) SyncUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w,
			pkgerrors.New(pkgerrors.CodeValidation, "invalid user id"))
		return
	}
	result, err := c.ingest.Sync(r.Context(), userID, true)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}

// InvalidateMappingCache drops the whitelist snapshot so the next sync run
// re-reads the mapping table. In production the shared secret is required on
// top of the admin role.
func (c *AdminController) InvalidateMappingCache(w http.ResponseWriter, r *http.Request) {
	if c.app.IsProd() {
		secret := strings.TrimSpace(r.Header.Get("X-Cache-Bust-Secret"))
		if c.admin.CacheBustSecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(c.admin.CacheBustSecret)) != 1 {
			responses.WriteError(r.Context(), c.logg, w,
				pkgerrors.New(pkgerrors.CodeForbidden, "cache bust secret required"))
			return
		}
	}
	c.ingest.InvalidateMappingCache()
	responses.WriteSuccess(w, map[string]string{"status": "invalidated"})
}
