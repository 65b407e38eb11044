package config

const (
	EnvPrefix = "VIDRELAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VIDRELAY_DB_DSN"
	EnvDBHost = "VIDRELAY_DB_HOST"
	EnvDBUser = "VIDRELAY_DB_USER"
	EnvDBName = "VIDRELAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
