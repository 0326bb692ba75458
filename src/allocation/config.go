package allocation

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WeightingMaxDays  float64 `envconfig:"WEIGHTING_MAX_DAYS" default:"7"`
	WeightingExponent float64 `envconfig:"WEIGHTING_EXPONENT" default:"1"`
	PriceNudgeTicks   int64   `envconfig:"PRICE_NUDGE_TICKS" default:"20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
