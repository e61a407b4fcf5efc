package config

const EnvPrefix = "FESTPASS"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "FESTPASS_APP_ENV"
	EnvPort     = "FESTPASS_APP_PORT"
	EnvDBDSN    = "FESTPASS_DB_DSN"
	EnvDBHost   = "FESTPASS_DB_HOST"
	EnvDBUser   = "FESTPASS_DB_USER"
	EnvDBName   = "FESTPASS_DB_NAME"
	EnvRedisURL = "FESTPASS_REDIS_URL"

	EnvJWTSecret  = "FESTPASS_JWT_SECRET"
	EnvJWTIssuer  = "FESTPASS_JWT_ISSUER"
	EnvJWTExpMins = "FESTPASS_JWT_EXPIRATION_MINUTES"

	EnvPortalEndpoint     = "FESTPASS_PORTAL_ENDPOINT"
	EnvPortalClientKey    = "FESTPASS_PORTAL_CLIENT_KEY"
	EnvPortalClientSecret = "FESTPASS_PORTAL_CLIENT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
