package config

const EnvPrefix = "KUADRAT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RevolutEnvSandbox    = "sandbox"
	RevolutEnvProduction = "production"
)

const (
	EnvAppEnv      = "KUADRAT_APP_ENV"
	EnvPort        = "KUADRAT_APP_PORT"
	EnvLogLevel    = "KUADRAT_LOG_LEVEL"
	EnvFrontendURL = "KUADRAT_FRONTEND_URL"
	EnvCORSOrigins = "KUADRAT_CORS_ORIGINS"

	EnvDBDSN      = "KUADRAT_DB_DSN"
	EnvDBHost     = "KUADRAT_DB_HOST"
	EnvDBPort     = "KUADRAT_DB_PORT"
	EnvDBUser     = "KUADRAT_DB_USER"
	EnvDBPassword = "KUADRAT_DB_PASSWORD"
	EnvDBName     = "KUADRAT_DB_NAME"

	EnvRedisURL = "KUADRAT_REDIS_URL"

	EnvJWTSecret = "KUADRAT_JWT_SECRET"
	EnvJWTIssuer = "KUADRAT_JWT_ISSUER"

	EnvRevolutEnv       = "KUADRAT_REVOLUT_ENV"
	EnvRevolutSecretKey = "KUADRAT_REVOLUT_SECRET_KEY"
	EnvRevolutTimeout   = "KUADRAT_REVOLUT_TIMEOUT"

	EnvGCPProjectID       = "KUADRAT_GCP_PROJECT_ID"
	EnvPubSubNotification = "KUADRAT_PUBSUB_NOTIFICATION_TOPIC"
	EnvPaymentSweepMinAge = "KUADRAT_PAYMENT_SWEEP_MIN_AGE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
