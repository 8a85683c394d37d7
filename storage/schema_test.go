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

package storage

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestAppendURLParams(t *testing.T) {
	url, err := AppendURLParams(`sqlite:///tmp/ubcf.db`, []lo.Tuple2[string, string]{{A: "_pragma", B: "busy_timeout(10000)"}})
	assert.NoError(t, err)
	assert.Equal(t, `sqlite:///tmp/ubcf.db?_pragma=busy_timeout%2810000%29`, url)
	url, err = AppendURLParams(`sqlite.db`, []lo.Tuple2[string, string]{{A: "a", B: "b"}})
	assert.NoError(t, err)
	assert.Equal(t, `sqlite.db?a=b`, url)
}

func TestAppendMySQLParams(t *testing.T) {
	dsn, err := AppendMySQLParams("gorse:gorse_pass@tcp(localhost:3306)/contoso?sql_mode=ANSI", map[string]string{
		"sql_mode":   "TRADITIONAL",
		"autocommit": "true",
	})
	assert.NoError(t, err)
	assert.Contains(t, dsn, "sql_mode=ANSI")
	assert.NotContains(t, dsn, "TRADITIONAL")
	assert.Contains(t, dsn, "autocommit=true")
}

func TestTablePrefix(t *testing.T) {
	tp := TablePrefix("ubcf_")
	assert.Equal(t, "ubcf_customers", tp.CustomersTable())
	assert.Equal(t, "ubcf_products", tp.ProductsTable())
	assert.Equal(t, "ubcf_sales", tp.SalesTable())
}

func TestNewGORMConfig(t *testing.T) {
	cfg := NewGORMConfig("ubcf_")
	assert.Equal(t, "ubcf_customers", cfg.NamingStrategy.TableName("SQLCustomer"))
	assert.Equal(t, "ubcf_sales", cfg.NamingStrategy.TableName("ClickHouseSale"))
}
