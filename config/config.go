package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crisha-app/crisha-backend/models"
)

// Config holds every runtime setting. It is loaded once in main and
// passed down explicitly; no package reads the environment on its own.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"crisha"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`

	UploadDir     string `envconfig:"UPLOAD_DIR" default:"media/contracts"`
	MaxUploadSize int64  `envconfig:"MAX_UPLOAD_SIZE" default:"20971520"` // 20MB

	// AI analysis. With AI_MOCK set or no API key configured the
	// deterministic sample analyzer is used instead of a live call.
	AIProvider string `envconfig:"AI_PROVIDER" default:"openai"` // openai|gemini
	AIAPIKey   string `envconfig:"AI_API_KEY"`
	AIBaseURL  string `envconfig:"AI_BASE_URL" default:"https://polza.ai/api/v1"`
	AIModel    string `envconfig:"AI_MODEL" default:"openai/gpt-4o-mini"`
	AIMock     bool   `envconfig:"AI_MOCK"`

	MaxConcurrentAnalyses int64 `envconfig:"MAX_CONCURRENT_ANALYSES" default:"4"`

	RobokassaLogin     string `envconfig:"ROBOKASSA_LOGIN" default:"crisha"`
	RobokassaPassword1 string `envconfig:"ROBOKASSA_PASSWORD_1" default:"test_pass_1_change_me"`
	RobokassaPassword2 string `envconfig:"ROBOKASSA_PASSWORD_2" default:"test_pass_2_change_me"`
	RobokassaBaseURL   string `envconfig:"ROBOKASSA_BASE_URL" default:"https://auth.robokassa.ru/Merchant/Index.aspx"`

	ProPrice       int `envconfig:"PRO_PRICE" default:"990"`
	ProChecks      int `envconfig:"PRO_CHECKS" default:"20"`
	BusinessPrice  int `envconfig:"BUSINESS_PRICE" default:"2990"`
	BusinessChecks int `envconfig:"BUSINESS_CHECKS" default:"100"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Plan describes a purchasable package of contract checks.
type Plan struct {
	ID     string `json:"id"`
	Price  int    `json:"price"`
	Checks int    `json:"checks"`
}

// Plan returns the plan for the given id, or ok=false for unknown ids.
func (c Config) Plan(id string) (Plan, bool) {
	switch id {
	case models.TierPro:
		return Plan{ID: id, Price: c.ProPrice, Checks: c.ProChecks}, true
	case models.TierBusiness:
		return Plan{ID: id, Price: c.BusinessPrice, Checks: c.BusinessChecks}, true
	default:
		return Plan{}, false
	}
}

// InitDB opens the PostgreSQL connection, configures pooling and runs
// the schema migration.
func (c Config) InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Europe/Moscow",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every model. Split out so tests can run
// it against their own database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Document{},
		&models.Transaction{},
	)
}
