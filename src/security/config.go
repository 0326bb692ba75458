package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CoinbaseKey        string `envconfig:"COINBASE_API_KEY" default:""`
	CoinbasePassphrase string `envconfig:"COINBASE_API_PASSPHRASE" default:""`
	CoinbaseSecret     string `envconfig:"COINBASE_API_SECRET" default:""`

	// bcrypt hash of the token callers must send in X-Trigger-Token. Empty disables the check.
	TriggerTokenHash string `envconfig:"TRIGGER_TOKEN_HASH" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
