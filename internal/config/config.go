package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr       string `env:"BUILDER_ADDR" envDefault:":8787"`
	CORSOrigin string `env:"BUILDER_CORS_ORIGIN" envDefault:"*"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Empty DatabaseURL keeps state in memory only.
	DatabaseURL     string        `env:"DATABASE_URL"`
	PersistInterval time.Duration `env:"BUILDER_PERSIST_INTERVAL" envDefault:"5s"`
	// Empty RedisURL disables sessions and outcome fan-out.
	RedisURL string `env:"REDIS_URL"`

	JWTSecret  string        `env:"BUILDER_JWT_SECRET" envDefault:"builder-dev-secret"`
	SessionTTL time.Duration `env:"BUILDER_SESSION_TTL" envDefault:"24h"`
	LoginSkew  time.Duration `env:"BUILDER_LOGIN_SKEW" envDefault:"5m"`

	BuilderAPIURL string        `env:"BUILDER_API_URL" envDefault:"http://localhost:5000/v1"`
	ContentURL    string        `env:"BUILDER_CONTENT_URL" envDefault:"http://localhost:5000/v1/storage/contents"`
	HubURL        string        `env:"HUB_URL" envDefault:"http://localhost:6000"`
	LandAPIURL    string        `env:"LAND_API_URL" envDefault:"http://localhost:7000/v1"`
	HTTPTimeout   time.Duration `env:"BUILDER_HTTP_TIMEOUT" envDefault:"30s"`
	// IdentityKey signs builder and hub requests. Empty sends them unsigned.
	IdentityKey string `env:"BUILDER_IDENTITY_KEY"`

	RPCURL        string `env:"ETH_RPC_URL" envDefault:"http://localhost:8545"`
	ChainID       int64  `env:"ETH_CHAIN_ID" envDefault:"11155111"`
	PrivateKey    string `env:"ETH_PRIVATE_KEY"`
	ContractsFile string `env:"BUILDER_CONTRACTS_FILE" envDefault:"contracts.yaml"`

	LockAttempts   int           `env:"BUILDER_LOCK_ATTEMPTS" envDefault:"10"`
	LockDelay      time.Duration `env:"BUILDER_LOCK_DELAY" envDefault:"500ms"`
	SyncRetryDelay time.Duration `env:"BUILDER_SYNC_RETRY_DELAY" envDefault:"5s"`

	MeiliURL       string `env:"MEILI_URL"`
	MeiliMasterKey string `env:"MEILI_MASTER_KEY"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"builder-contents"`
	MinioSecure    bool   `env:"MINIO_SECURE" envDefault:"false"`

	// PreviewURL is the page the media recorder captures, with %s standing
	// for the project id. Empty disables capture.
	PreviewURL     string        `env:"BUILDER_PREVIEW_URL"`
	ChromeURL      string        `env:"CHROME_URL"`
	CaptureTimeout time.Duration `env:"BUILDER_CAPTURE_TIMEOUT" envDefault:"60s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LockAttempts < 1 {
		return Config{}, fmt.Errorf("BUILDER_LOCK_ATTEMPTS must be at least 1, got %d", cfg.LockAttempts)
	}
	return cfg, nil
}

// ContractSet lists the contract addresses deployed on one chain.
type ContractSet struct {
	Factory string `yaml:"factory"`
	Estate  string `yaml:"estate"`
	Parcel  string `yaml:"parcel"`
	Scene   string `yaml:"scene"`
	Bean    string `yaml:"bean"`
	Mana    string `yaml:"mana"`
}

// ContractBook maps chain ids to their contract sets.
type ContractBook struct {
	Chains map[string]ContractSet `yaml:"chains"`
}

func LoadContracts(path string) (ContractBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ContractBook{}, fmt.Errorf("read contracts file: %w", err)
	}
	return ParseContracts(raw)
}

func ParseContracts(raw []byte) (ContractBook, error) {
	var book ContractBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return ContractBook{}, fmt.Errorf("parse contracts file: %w", err)
	}
	if len(book.Chains) == 0 {
		return ContractBook{}, fmt.Errorf("contracts file lists no chains")
	}
	return book, nil
}

func (b ContractBook) For(chainID int64) (ContractSet, error) {
	set, ok := b.Chains[strconv.FormatInt(chainID, 10)]
	if !ok {
		return ContractSet{}, fmt.Errorf("no contracts configured for chain %d", chainID)
	}
	return set, nil
}
