package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Firebase is the web configuration record of the Firebase project.
type Firebase struct {
	ProjectID         string `env:"FIREBASE_PROJECT_ID"`
	APIKey            string `env:"FIREBASE_API_KEY"`
	AuthDomain        string `env:"FIREBASE_AUTH_DOMAIN"`
	StorageBucket     string `env:"FIREBASE_STORAGE_BUCKET"`
	MessagingSenderID string `env:"FIREBASE_MESSAGING_SENDER_ID"`
	AppID             string `env:"FIREBASE_APP_ID"`

	CredentialsFile       string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	CredentialsJSON       string `env:"FIREBASE_SERVICE_ACCOUNT_JSON"`
	AuthEmulatorHost      string `env:"FIREBASE_AUTH_EMULATOR_HOST"`
	FirestoreEmulatorHost string `env:"FIRESTORE_EMULATOR_HOST"`
}

type Session struct {
	Backend   string        `env:"SESSION_BACKEND,default=memory"`
	RedisAddr string        `env:"REDIS_ADDR,default=localhost:6379"`
	KeyPrefix string        `env:"SESSION_KEY_PREFIX,default=registry:session:"`
	TTL       time.Duration `env:"SESSION_TTL,default=24h"`
}

type Config struct {
	Firebase Firebase
	Session  Session

	Port                 string `env:"PORT,default=8080"`
	Origins              string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	RequireAuth          bool   `env:"REQUIRE_AUTH,default=false"`
	PropertyStore        string `env:"PROPERTY_STORE,default=firestore"`
	PropertiesCollection string `env:"PROPERTIES_COLLECTION,default=properties"`

	AllowedOrigins []string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	// FIREBASE_PROJECT_ID, then GOOGLE_CLOUD_PROJECT
	if c.Firebase.ProjectID == "" {
		c.Firebase.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if c.Firebase.StorageBucket == "" && c.Firebase.ProjectID != "" {
		c.Firebase.StorageBucket = c.Firebase.ProjectID + ".firebasestorage.app"
	}
	if c.Firebase.AuthDomain == "" && c.Firebase.ProjectID != "" {
		c.Firebase.AuthDomain = c.Firebase.ProjectID + ".firebaseapp.com"
	}

	allowed := []string{}
	for _, o := range strings.Split(c.Origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	c.AllowedOrigins = allowed

	c.PropertyStore = strings.ToLower(strings.TrimSpace(c.PropertyStore))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
}

func (c Config) Validate() error {
	if c.Firebase.ProjectID == "" {
		return fmt.Errorf("missing FIREBASE_PROJECT_ID or GOOGLE_CLOUD_PROJECT")
	}
	if c.Firebase.APIKey == "" {
		return fmt.Errorf("FIREBASE_API_KEY is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.PropertyStore {
	case StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("unknown PROPERTY_STORE %q", c.PropertyStore)
	}
	if c.PropertiesCollection == "" {
		return fmt.Errorf("PROPERTIES_COLLECTION is required")
	}
	switch c.Session.Backend {
	case SessionMemory:
	case SessionRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	return nil
}
