package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	LimitSweepPeriod time.Duration `envconfig:"LIMIT_SWEEP_PERIOD" default:"15s"`
	DcaSweepPeriod   time.Duration `envconfig:"DCA_SWEEP_PERIOD" default:"10s"`

	// Simulated SOL balance granted to users who have not been assigned one.
	DefaultBalanceSol float64 `envconfig:"DEFAULT_BALANCE_SOL" default:"10"`

	DexscreenerURL string `envconfig:"DEXSCREENER_URL" default:"https://api.dexscreener.com"`
	CoingeckoURL   string `envconfig:"COINGECKO_URL" default:"https://api.coingecko.com"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}
