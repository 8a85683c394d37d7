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
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/gorse-ubcf/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var dataStorePrefixes = []string{
	storage.SQLitePrefix,
	storage.MySQLPrefix,
	storage.PostgresPrefix,
	storage.PostgreSQLPrefix,
	storage.ClickhousePrefix,
	storage.CHHTTPPrefix,
	storage.CHHTTPSPrefix,
	storage.MongoPrefix,
	storage.MongoSrvPrefix,
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("data_store", validateDataStore); err != nil {
			panic(err)
		}
	})
	return validate
}

func validateDataStore(fl validator.FieldLevel) bool {
	dataStore := fl.Field().String()
	return lo.ContainsBy(dataStorePrefixes, func(prefix string) bool {
		return strings.HasPrefix(dataStore, prefix)
	})
}

// Validate checks every field against its constraints.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := lo.Map(validationErrors, func(fe validator.FieldError, _ int) string {
				return fe.Namespace() + " failed on " + fe.Tag()
			})
			return errors.NotValidf("config: %s", strings.Join(messages, "; "))
		}
		return errors.Trace(err)
	}
	return nil
}
