package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CoinbaseBaseURL         string        `envconfig:"COINBASE_BASE_URL" default:"https://api.exchange.coinbase.com"`
	CoinbaseTimeout         time.Duration `envconfig:"COINBASE_TIMEOUT" default:"15s"`
	CoinbaseRetryAttempts   int           `envconfig:"COINBASE_RETRY_ATTEMPTS" default:"4"`
	CoinbaseRetryBaseDelay  time.Duration `envconfig:"COINBASE_RETRY_BASE_DELAY" default:"250ms"`
	CoinbaseRetryMaxBackoff time.Duration `envconfig:"COINBASE_RETRY_MAX_BACKOFF" default:"2s"`

	SheetsBaseURL string        `envconfig:"SHEETS_BASE_URL" default:"https://docs.google.com"`
	SheetsTimeout time.Duration `envconfig:"SHEETS_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
