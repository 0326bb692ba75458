package security

import "strings"

// Credentials are the exchange API key triple sent with a request.
type Credentials struct {
	Key        string `json:"key"`
	Passphrase string `json:"passphrase"`
	Secret     string `json:"secret"`
}

// EnvCredentials loads COINBASE_API_* from the environment.
func EnvCredentials() Credentials {
	cfg := GetConfig()
	return Credentials{
		Key:        cfg.CoinbaseKey,
		Passphrase: cfg.CoinbasePassphrase,
		Secret:     cfg.CoinbaseSecret,
	}
}

// Complete reports whether all three values are set.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Key) != "" &&
		strings.TrimSpace(c.Passphrase) != "" &&
		strings.TrimSpace(c.Secret) != ""
}

// Presence tells which values are set without exposing them.
func (c Credentials) Presence() map[string]bool {
	return map[string]bool{
		"key":    strings.TrimSpace(c.Key) != "",
		"pass":   strings.TrimSpace(c.Passphrase) != "",
		"secret": strings.TrimSpace(c.Secret) != "",
	}
}

// Or fills blank values from fallback.
func (c Credentials) Or(fallback Credentials) Credentials {
	if strings.TrimSpace(c.Key) == "" {
		c.Key = fallback.Key
	}
	if strings.TrimSpace(c.Passphrase) == "" {
		c.Passphrase = fallback.Passphrase
	}
	if strings.TrimSpace(c.Secret) == "" {
		c.Secret = fallback.Secret
	}
	return c
}
