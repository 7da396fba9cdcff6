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

package model

import (
	"github.com/cinematch-io/cinematch/base/log"
	"go.uber.org/zap"
)

// ParamName is the name of a hyper-parameter.
type ParamName string

const (
	NFactors    ParamName = "n_factors"   // number of latent factors
	NEpochs     ParamName = "n_epochs"    // number of epochs
	Lr          ParamName = "lr"          // learning rate
	Reg         ParamName = "reg"         // regularization strength
	InitMean    ParamName = "init_mean"   // mean of gaussian initial parameters
	InitStdDev  ParamName = "init_std"    // standard deviation of gaussian initial parameters
	BatchSize   ParamName = "batch_size"  // mini-batch size
	RandomState ParamName = "random_state"
	MinRating   ParamName = "min_rating" // lower bound of the rating range
	MaxRating   ParamName = "max_rating" // upper bound of the rating range
)

// Params stores hyper-parameters for a model. Missing entries fall back to defaults.
type Params map[ParamName]interface{}

// GetInt gets an integer parameter by name. Returns _default if not exists or type mismatch.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		default:
			log.Logger().Error("type mismatch in hyper-parameter",
				zap.String("name", string(name)), zap.Any("value", val))
		}
	}
	return _default
}

// GetInt64 gets an int64 parameter by name. Returns _default if not exists or type mismatch.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		default:
			log.Logger().Error("type mismatch in hyper-parameter",
				zap.String("name", string(name)), zap.Any("value", val))
		}
	}
	return _default
}

// GetFloat32 gets a float parameter by name. Returns _default if not exists or type mismatch.
func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch v := val.(type) {
		case float32:
			return v
		case float64:
			return float32(v)
		case int:
			return float32(v)
		default:
			log.Logger().Error("type mismatch in hyper-parameter",
				zap.String("name", string(name)), zap.Any("value", val))
		}
	}
	return _default
}

// Copy returns a shallow copy of the parameters.
func (parameters Params) Copy() Params {
	copied := make(Params, len(parameters))
	for name, value := range parameters {
		copied[name] = value
	}
	return copied
}

// Overwrite overwrites parameters with another set of parameters.
func (parameters Params) Overwrite(params Params) Params {
	merged := parameters.Copy()
	for name, value := range params {
		merged[name] = value
	}
	return merged
}
