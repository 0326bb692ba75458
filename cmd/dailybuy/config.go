package dailybuy

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Source tag for imported rows when --source is not given.
	ImportSource string `envconfig:"IMPORT_SOURCE" default:"manual"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
