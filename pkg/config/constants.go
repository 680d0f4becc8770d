package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvPort         = "STOREFRONT_APP_PORT"
	EnvDBDSN        = "STOREFRONT_DB_DSN"
	EnvDBHost       = "STOREFRONT_DB_HOST"
	EnvDBUser       = "STOREFRONT_DB_USER"
	EnvDBName       = "STOREFRONT_DB_NAME"
	EnvDBPassword   = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL     = "STOREFRONT_REDIS_URL"
	EnvJWTSecret    = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer    = "STOREFRONT_JWT_ISSUER"
	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"

	EnvCartMaxAttempts  = "STOREFRONT_CART_MAX_ATTEMPTS"
	EnvCartAbandonAfter = "STOREFRONT_CART_ABANDON_AFTER"
	EnvCartSessionHdr   = "STOREFRONT_CART_SESSION_HEADER"
)

// MaxCartAttempts caps coordinator retries on transaction conflicts.
const MaxCartAttempts = 3

const DefaultSessionHeader = "X-Session-Id"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
