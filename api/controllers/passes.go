package controllers

import (
	"net/http"

	"github.com/festworks/festpass-backend/api/middleware"
	"github.com/festworks/festpass-backend/api/responses"
	"github.com/festworks/festpass-backend/internal/ingest"
	"github.com/festworks/festpass-backend/internal/passes"
	"github.com/festworks/festpass-backend/pkg/enums"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/google/uuid"
)

// PassesController serves the attendee-facing pass surface: the reconciling
// sync endpoint and the plain ownership listing.
type PassesController struct {
	ingest ingest.Service
	passes passes.Service
	logg   *logger.Logger
}

// NewPassesController constructs the passes controller.
func NewPassesController(ingestService ingest.Service, passService passes.Service, logg *logger.Logger) *PassesController {
	return &PassesController{ingest: ingestService, passes: passService, logg: logg}
}

// Sync fetches the caller's upstream payment logs, reconciles them into pass
// ownerships, and returns the full ownership join plus the pending report.
func (c *PassesController) Sync(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	debug := r.URL.Query().Get("debug") == "true" &&
		middleware.RoleFromContext(r.Context()) == string(enums.MemberRoleAdmin)

	result, err := c.ingest.Sync(r.Context(), userID, debug)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}

// ListOwned returns the caller's owned passes without contacting the portal.
func (c *PassesController) ListOwned(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	owned, err := c.passes.ListOwned(r.Context(), userID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{"passes": owned})
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
