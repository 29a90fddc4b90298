package config

// EnvPrefix is handed to envconfig; every field declares its full key explicitly.
const EnvPrefix = "GATEWAYSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv            = "GATEWAYSYNC_APP_ENV"
	EnvDBDSN             = "GATEWAYSYNC_DB_DSN"
	EnvDBHost            = "GATEWAYSYNC_DB_HOST"
	EnvDBUser            = "GATEWAYSYNC_DB_USER"
	EnvDBName            = "GATEWAYSYNC_DB_NAME"
	EnvRedisURL          = "GATEWAYSYNC_REDIS_URL"
	EnvGatewayBaseURL    = "GATEWAYSYNC_GATEWAY_BASE_URL"
	EnvGatewaySecretKey  = "GATEWAYSYNC_GATEWAY_SECRET_KEY"
	EnvGatewayPublicKey  = "GATEWAYSYNC_GATEWAY_PUBLIC_KEY"
	EnvGatewayTimeout    = "GATEWAYSYNC_GATEWAY_TIMEOUT"
	EnvUseSQLite         = "GATEWAYSYNC_USE_SQLITE"
	EnvListReconcileSize = "GATEWAYSYNC_SYNC_LIST_RECONCILE_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
