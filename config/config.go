// Copyright 2025 cinematch Project Authors
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
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/model"
	"github.com/cinematch-io/cinematch/online"
)

// Config is the configuration of the recommendation engine.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Model     ModelConfig     `mapstructure:"model"`
	Online    OnlineConfig    `mapstructure:"online"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

type ServerConfig struct {
	HttpHost string `mapstructure:"http_host"`
	HttpPort int    `mapstructure:"http_port" validate:"gte=0,lte=65535"`
}

type CacheConfig struct {
	// Store is the cache store URL, e.g. memory:// or redis://host:6379/0.
	Store string `mapstructure:"store" validate:"required"`
}

type ModelConfig struct {
	NFactors     int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs      int     `mapstructure:"n_epochs" validate:"gt=0"`
	Lr           float32 `mapstructure:"lr" validate:"gt=0"`
	Reg          float32 `mapstructure:"reg" validate:"gte=0"`
	InitStdDev   float32 `mapstructure:"init_std" validate:"gt=0"`
	BatchSize    int     `mapstructure:"batch_size" validate:"gt=0"`
	MinRating    float32 `mapstructure:"min_rating"`
	MaxRating    float32 `mapstructure:"max_rating" validate:"gtfield=MinRating"`
	RandomState  int64   `mapstructure:"random_state"`
	UserCapacity int     `mapstructure:"user_capacity" validate:"gt=0"`
	ItemCapacity int     `mapstructure:"item_capacity" validate:"gt=0"`
}

type OnlineConfig struct {
	BatchSize           int           `mapstructure:"batch_size" validate:"gt=0"`
	QueueCapacity       int           `mapstructure:"queue_capacity" validate:"gte=0"`
	DrainThreshold      int           `mapstructure:"drain_threshold" validate:"gt=0"`
	DrainInterval       time.Duration `mapstructure:"drain_interval" validate:"gt=0"`
	DrainPacing         time.Duration `mapstructure:"drain_pacing" validate:"gte=0"`
	ValidationSize      int           `mapstructure:"validation_size" validate:"gt=0"`
	LearningRate        float32       `mapstructure:"learning_rate" validate:"gt=0"`
	LearningRateCeiling float32       `mapstructure:"learning_rate_ceiling" validate:"gt=0"`
	LearningRateDecay   float32       `mapstructure:"learning_rate_decay" validate:"gt=0,lt=1"`
	LearningRateGrowth  float32       `mapstructure:"learning_rate_growth" validate:"gt=1"`
	SlopeWindow         int           `mapstructure:"slope_window" validate:"gt=1"`
	SlopeThreshold      float64       `mapstructure:"slope_threshold" validate:"gt=0"`
}

type RecommendConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	DefaultCount  int           `mapstructure:"default_count" validate:"gt=0"`
	CandidatePool int           `mapstructure:"candidate_pool" validate:"gt=0"`
}

func setDefault(v *viper.Viper) {
	v.SetDefault("server.http_host", "0.0.0.0")
	v.SetDefault("server.http_port", 8087)
	v.SetDefault("cache.store", "memory://")
	v.SetDefault("model.n_factors", 16)
	v.SetDefault("model.n_epochs", 20)
	v.SetDefault("model.lr", 0.005)
	v.SetDefault("model.reg", 0.02)
	v.SetDefault("model.init_std", 0.1)
	v.SetDefault("model.batch_size", 128)
	v.SetDefault("model.min_rating", 1)
	v.SetDefault("model.max_rating", 5)
	v.SetDefault("model.random_state", 0)
	v.SetDefault("model.user_capacity", 10000)
	v.SetDefault("model.item_capacity", 10000)
	v.SetDefault("online.batch_size", 64)
	v.SetDefault("online.queue_capacity", 4096)
	v.SetDefault("online.drain_threshold", 32)
	v.SetDefault("online.drain_interval", 10*time.Second)
	v.SetDefault("online.drain_pacing", time.Second)
	v.SetDefault("online.validation_size", 32)
	v.SetDefault("online.learning_rate", 0.005)
	v.SetDefault("online.learning_rate_ceiling", 0.05)
	v.SetDefault("online.learning_rate_decay", 0.5)
	v.SetDefault("online.learning_rate_growth", 1.2)
	v.SetDefault("online.slope_window", 10)
	v.SetDefault("online.slope_threshold", 0.001)
	v.SetDefault("recommend.cache_ttl", 5*time.Minute)
	v.SetDefault("recommend.default_count", 10)
	v.SetDefault("recommend.candidate_pool", 100)
}

// LoadConfig loads the configuration from a TOML file and the environment.
// Environment variables use the CINEMATCH_ prefix with underscores, e.g.
// CINEMATCH_CACHE_STORE. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("cinematch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("load config", zap.String("path", path))
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := validator.New().Struct(&config); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// ModelParams converts the model section to hyper-parameters.
func (config *Config) ModelParams() model.Params {
	return model.Params{
		model.NFactors:    config.Model.NFactors,
		model.NEpochs:     config.Model.NEpochs,
		model.Lr:          config.Model.Lr,
		model.Reg:         config.Model.Reg,
		model.InitStdDev:  config.Model.InitStdDev,
		model.BatchSize:   config.Model.BatchSize,
		model.MinRating:   config.Model.MinRating,
		model.MaxRating:   config.Model.MaxRating,
		model.RandomState: config.Model.RandomState,
	}
}

// OnlineConfig converts the online section to the coordinator configuration.
func (config *Config) OnlineConfig() *online.Config {
	return &online.Config{
		BatchSize:           config.Online.BatchSize,
		QueueCapacity:       config.Online.QueueCapacity,
		DrainThreshold:      config.Online.DrainThreshold,
		DrainInterval:       config.Online.DrainInterval,
		DrainPacing:         config.Online.DrainPacing,
		ValidationSize:      config.Online.ValidationSize,
		LearningRate:        config.Online.LearningRate,
		LearningRateCeiling: config.Online.LearningRateCeiling,
		LearningRateDecay:   config.Online.LearningRateDecay,
		LearningRateGrowth:  config.Online.LearningRateGrowth,
		SlopeWindow:         config.Online.SlopeWindow,
		SlopeThreshold:      config.Online.SlopeThreshold,
	}
}
