package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "COMMERCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "COMMERCE_DB_DSN"
	EnvDBHost = "COMMERCE_DB_HOST"
	EnvDBUser = "COMMERCE_DB_USER"
	EnvDBName = "COMMERCE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
