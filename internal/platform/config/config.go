package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	AdminKey       string
	IdentityScheme string

	ElectionID         string
	ElectionName       string
	ElectionCandidates []string

	LedgerRPCURL       string
	LedgerMaxAttempts  int
	LedgerBackoffBase  time.Duration
	SubmitTimeout      time.Duration
	ChallengeTTL       time.Duration
	AuthTokenTTL       time.Duration
	OutboxPollInterval time.Duration

	AutoSetupElection      bool
	EnableOutboxRelay      bool
	EnableChallengeSweeper bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "electra"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	candidates := splitList(os.Getenv("ELECTION_CANDIDATES"))
	if len(candidates) == 0 {
		candidates = []string{"Alice", "Bob", "Charlie", "David", "Eve"}
	}

	ledgerURL := os.Getenv("LEDGER_RPC_URL")
	if ledgerURL == "" {
		ledgerURL = "https://api.devnet.solana.com"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		AdminKey:       os.Getenv("ADMIN_KEY"),
		IdentityScheme: envString("IDENTITY_SCHEME", "email"),

		ElectionID:         envString("ELECTION_ID", "college-council-2026"),
		ElectionName:       envString("ELECTION_NAME", "Student Council Election"),
		ElectionCandidates: candidates,

		LedgerRPCURL:       ledgerURL,
		LedgerMaxAttempts:  envInt("LEDGER_MAX_ATTEMPTS", 3),
		LedgerBackoffBase:  envDuration("LEDGER_BACKOFF_BASE", 200*time.Millisecond),
		SubmitTimeout:      envDuration("SUBMIT_TIMEOUT", 30*time.Second),
		ChallengeTTL:       envDuration("CHALLENGE_TTL", 5*time.Minute),
		AuthTokenTTL:       envDuration("AUTH_TOKEN_TTL", 30*time.Minute),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		AutoSetupElection:      envBool("ELECTION_AUTOSETUP", false),
		EnableOutboxRelay:      envBool("ENABLE_OUTBOX_RELAY", true),
		EnableChallengeSweeper: envBool("ENABLE_CHALLENGE_SWEEPER", true),
	}, nil
}

func splitList(raw string) []string {
	var items []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
