package config

const EnvPrefix = "STABLECOIN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                = "STABLECOIN_APP_ENV"
	EnvPort                  = "STABLECOIN_APP_PORT"
	EnvPaymentRequestWindow  = "STABLECOIN_PAYMENT_REQUEST_WINDOW"
	EnvPaymentStaticWindow   = "STABLECOIN_PAYMENT_STATIC_WINDOW"
	EnvPaymentFeeRate        = "STABLECOIN_PAYMENT_FEE_RATE"
	EnvPaymentMaxAmountScale = "STABLECOIN_PAYMENT_MAX_AMOUNT_SCALE"
	EnvCronInterval          = "STABLECOIN_CRON_INTERVAL"
	EnvRedisURL              = "STABLECOIN_REDIS_URL"
	EnvGCPProjectID          = "STABLECOIN_GCP_PROJECT_ID"
	EnvPubSubStatusTopic     = "STABLECOIN_PUBSUB_STATUS_TOPIC"
)
