package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced with must(); the
// notification transports are deliberately optional because a missing
// credential disables the corresponding channel instead of failing startup.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	BaseURL      string // public base URL used in tracking-pixel and invitation links
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for operator password hashing

	// Email transport.  Leaving EmailAPIKey empty disables the email
	// channel; status changes are still committed and SMS still runs.
	EmailAPIKey string // provider API key
	EmailAPIURL string // provider endpoint, overridable for testing
	EmailFrom   string // From address on outbound mail

	// SMS transport.  Leaving SMSAccountSID or SMSAuthToken empty disables
	// the SMS channel.
	SMSAccountSID string // provider account identifier
	SMSAuthToken  string // provider auth token
	SMSFrom       string // sending phone number
	SMSAPIBase    string // provider API base URL, overridable for testing
}

// Load reads configuration from environment variables.  Missing required
// variables cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		BaseURL:      must("APP_BASE_URL"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		EmailAPIKey: os.Getenv("EMAIL_API_KEY"),
		EmailAPIURL: getenv("EMAIL_API_URL", "https://api.resend.com/emails"),
		EmailFrom:   getenv("EMAIL_FROM", "notifications@averlane.com"),

		SMSAccountSID: os.Getenv("SMS_ACCOUNT_SID"),
		SMSAuthToken:  os.Getenv("SMS_AUTH_TOKEN"),
		SMSFrom:       os.Getenv("SMS_FROM"),
		SMSAPIBase:    getenv("SMS_API_BASE", "https://api.twilio.com"),
	}
}

// EmailConfigured reports whether the email channel has credentials.
func (c Config) EmailConfigured() bool { return c.EmailAPIKey != "" }

// SMSConfigured reports whether the SMS channel has credentials.
func (c Config) SMSConfigured() bool {
	return c.SMSAccountSID != "" && c.SMSAuthToken != "" && c.SMSFrom != ""
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// getenv returns the value of key or def when unset/empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
