// Package config centralizes the runtime settings every package needs
// (payload limits, poll intervals, retry policy), sourced from a YAML file,
// environment variables, and flag overrides via spf13/viper.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from `configPath` (if it exists) and the
// environment (prefixed A2A_), falling back to the defaults below.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("a2a")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.maxPayloadBytes", 10*1024*1024)

	v.SetDefault("agent.name", "a2a-go reference agent")
	v.SetDefault("agent.version", "0.1.0")
	v.SetDefault("agent.capabilities.streaming", true)
	v.SetDefault("agent.capabilities.pushNotifications", true)
	v.SetDefault("agent.capabilities.stateTransitionHistory", false)

	v.SetDefault("consumer.pollInterval", 500*time.Millisecond)

	v.SetDefault("push.maxRetries", 3)
	v.SetDefault("push.retryInterval", 2*time.Second)

	v.SetDefault("auth.tokenTTL", time.Hour)
	v.SetDefault("auth.signingKey", "")
}
