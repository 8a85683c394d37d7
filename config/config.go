// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"runtime"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of the recommender.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Server     ServerConfig     `mapstructure:"server"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// DatabaseConfig is the configuration for the data store.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// RecommendConfig is the configuration of recommendation.
type RecommendConfig struct {
	CustomerType       string        `mapstructure:"customer_type"`
	NumNeighbors       int           `mapstructure:"num_neighbors" validate:"gte=1,lte=1000"`
	NumRecommendations int           `mapstructure:"num_recommendations" validate:"gte=1"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

type SimilarityConfig struct {
	NumJobs int `mapstructure:"num_jobs" validate:"gte=1"`
}

// ServerConfig is the configuration of the REST server.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	APIKey string `mapstructure:"api_key"`
}

// RetryConfig controls retries of data store reads.
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"gt=0"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time" validate:"gt=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://ubcf.db",
		},
		Recommend: RecommendConfig{
			CustomerType:       "Person",
			NumNeighbors:       5,
			NumRecommendations: 3,
			CacheTTL:           10 * time.Minute,
		},
		Similarity: SimilarityConfig{
			NumJobs: runtime.NumCPU(),
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8087,
		},
		Retry: RetryConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxElapsedTime:  time.Minute,
		},
		Tracing: TracingConfig{
			Exporter: "zipkin",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	// [recommend]
	v.SetDefault("recommend.customer_type", defaultConfig.Recommend.CustomerType)
	v.SetDefault("recommend.num_neighbors", defaultConfig.Recommend.NumNeighbors)
	v.SetDefault("recommend.num_recommendations", defaultConfig.Recommend.NumRecommendations)
	v.SetDefault("recommend.cache_ttl", defaultConfig.Recommend.CacheTTL)
	// [similarity]
	v.SetDefault("similarity.num_jobs", defaultConfig.Similarity.NumJobs)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.api_key", defaultConfig.Server.APIKey)
	// [retry]
	v.SetDefault("retry.initial_interval", defaultConfig.Retry.InitialInterval)
	v.SetDefault("retry.max_elapsed_time", defaultConfig.Retry.MaxElapsedTime)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.data_store", "UBCF_DATA_STORE"},
	{"database.table_prefix", "UBCF_TABLE_PREFIX"},
	{"recommend.customer_type", "UBCF_CUSTOMER_TYPE"},
	{"recommend.num_neighbors", "UBCF_NUM_NEIGHBORS"},
	{"recommend.num_recommendations", "UBCF_NUM_RECOMMENDATIONS"},
	{"similarity.num_jobs", "UBCF_NUM_JOBS"},
	{"server.host", "UBCF_HTTP_HOST"},
	{"server.port", "UBCF_HTTP_PORT"},
	{"server.api_key", "UBCF_API_KEY"},
}

// LoadConfig loads configuration from a TOML file and environment variables.
// Defaults and environment variables are used alone if path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	// bind environment bindings
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	// load config file
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Trace(err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
