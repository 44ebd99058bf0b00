package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
