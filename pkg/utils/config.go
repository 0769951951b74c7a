// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ConfigurationFileDirectory string
)

// LoadConfiguration merges configFileName (any extension viper knows) into the
// global viper instance and enables environment lookups. It returns whether a
// file was found.
func LoadConfiguration(configFileName string, required bool) bool {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath(ResolvePath(ConfigurationFileDirectory))
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.ensure-buckets")
	viper.AddConfigPath("/etc/ensure-buckets/")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if required {
				log.Fatal().Msgf("Config file not found: %s", configFileName)
			}
			log.Debug().Msgf("Config file not found: %s", configFileName)
			return false
		}

		if required {
			log.Fatal().Err(err).Msgf("Failed to load required config file: %s", configFileName)
		}
		log.Warn().Err(err).Msgf("Failed to load config file: %s", configFileName)
		return false
	}
	log.Info().Msgf("Loaded config file: %s", viper.ConfigFileUsed())

	return true
}
