package config

// Settings carries the application-level configuration shared by the API
// server and the queue workers. Values come from the environment; fee rates
// and polling bounds are explicit here so they can be overridden in tests.
type Settings struct {
	DatabaseURL string
	RedisURL    string

	StripeSecretKey        string
	StripeWebhookSecretP   string // platform webhook endpoint
	StripeWebhookSecretC   string // connect webhook endpoint
	StripePlatformAccount  string
	ProcessTaxes           bool
	HomeCountry            string // card country that pays the base rate only
	ExtraFeeRate           float64

	BankingAPIURL           string
	BankingAPIKey           string
	BankingWebhookPublicKey string
	BankingPaymentRail      string
	BankingCurrency         string

	ChainID         int64
	ChainRPCURL     string
	ContractAddress string
	WalletKey       string

	JWTSecret string
}

// Load builds Settings from the environment.
func Load() Settings {
	return Settings{
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		RedisURL:    GetEnv("REDIS_URL", "redis://localhost:6379"),

		StripeSecretKey:       GetEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecretP:  GetEnv("STRIPE_WEBHOOK_SECRET_P", ""),
		StripeWebhookSecretC:  GetEnv("STRIPE_WEBHOOK_SECRET_C", ""),
		StripePlatformAccount: GetEnv("STRIPE_PLATFORM_ACCOUNT", ""),
		ProcessTaxes:          GetBoolEnv("STRIPE_PROCESS_TAXES", false),
		HomeCountry:           GetEnv("HOME_COUNTRY", "US"),
		ExtraFeeRate:          0.015,

		BankingAPIURL:           GetEnv("BANKING_API_URL", "https://api.bridge.xyz"),
		BankingAPIKey:           GetEnv("BANKING_API_KEY", ""),
		BankingWebhookPublicKey: GetEnv("BANKING_WEBHOOK_PUBLIC_KEY", ""),
		BankingPaymentRail:      GetEnv("BANKING_PAYMENT_RAIL", "polygon"),
		BankingCurrency:         GetEnv("BANKING_CURRENCY", "usdc"),

		ChainID:         int64(GetIntEnv("CHAIN_ID", 137)),
		ChainRPCURL:     GetEnv("CHAIN_RPC_URL", ""),
		ContractAddress: GetEnv("TREASURY_CONTRACT_ADDRESS", "0x1ecdab8ac2bcb0b0e02b3b26e845725a19135147"),
		WalletKey:       GetEnv("WALLET_PRIVATE_KEY", ""),

		JWTSecret: GetEnv("JWT_SECRET", ""),
	}
}
