package controllers

import (
	"context"
	"net/http"

	"github.com/festworks/festpass-backend/api/responses"
	"github.com/festworks/festpass-backend/pkg/config"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/festworks/festpass-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthController serves liveness and readiness probes.
type HealthController struct {
	cfg   *config.Config
	db    pinger
	redis pinger
	logg  *logger.Logger
}

// NewHealthController constructs the probe controller; db and redis may be nil
// when the deployment does not wire them.
func NewHealthController(cfg *config.Config, db, redis pinger, logg *logger.Logger) *HealthController {
	return &HealthController{cfg: cfg, db: db, redis: redis, logg: logg}
}

// Healthz reports process liveness.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	responses.WriteSuccess(w, map[string]string{"status": "ok", "env": c.cfg.App.Env})
}

// Readyz reports dependency readiness.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c.db != nil {
		if err := c.db.Ping(ctx); err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
			return
		}
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx); err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
			return
		}
	}
	responses.WriteSuccess(w, map[string]string{"status": "ready"})
}
