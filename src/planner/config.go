package planner

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DepositMinimum  float64       `envconfig:"DEPOSIT_MINIMUM" default:"10"`
	DepositMaximum  float64       `envconfig:"DEPOSIT_MAXIMUM" default:"200"`
	DepositCurrency string        `envconfig:"DEPOSIT_CURRENCY" default:"USD"`
	DepositMargin   float64       `envconfig:"DEPOSIT_MARGIN" default:"0.05"`
	SettlePolls     int           `envconfig:"SETTLE_POLLS" default:"5"`
	SettleInterval  time.Duration `envconfig:"SETTLE_INTERVAL" default:"1s"`
	DryRun          bool          `envconfig:"DRY_RUN" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
