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

package data

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/gorse-ubcf/common/parallel"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/gorse-io/gorse-ubcf/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	_ "github.com/mailru/go-clickhouse/v2"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

const batchSize = 1000

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	ClickHouse
	SQLite
)

type SQLCustomer struct {
	CustomerId   string `gorm:"column:customer_id;type:varchar(256);primaryKey"`
	Name         string `gorm:"column:name;type:varchar(256) not null"`
	Email        string `gorm:"column:email;type:varchar(256) not null"`
	Gender       string `gorm:"column:gender;type:varchar(16) not null"`
	CustomerType string `gorm:"column:customer_type;type:varchar(64) not null;index:customer_type_index"`
}

type SQLProduct struct {
	ProductId string `gorm:"column:product_id;type:varchar(256);primaryKey"`
	Name      string `gorm:"column:name;type:varchar(256) not null"`
}

type SQLSale struct {
	CustomerId string  `gorm:"column:customer_id;type:varchar(256) not null;index:customer_id_index"`
	ProductId  string  `gorm:"column:product_id;type:varchar(256) not null"`
	Quantity   float64 `gorm:"column:quantity;type:double precision not null"`
}

type ClickHouseCustomer struct {
	CustomerId   string    `gorm:"column:customer_id;type:String"`
	Name         string    `gorm:"column:name;type:String"`
	Email        string    `gorm:"column:email;type:String"`
	Gender       string    `gorm:"column:gender;type:String"`
	CustomerType string    `gorm:"column:customer_type;type:LowCardinality(String)"`
	Version      time.Time `gorm:"column:version;type:DateTime"`
}

type ClickHouseProduct struct {
	ProductId string    `gorm:"column:product_id;type:String"`
	Name      string    `gorm:"column:name;type:String"`
	Version   time.Time `gorm:"column:version;type:DateTime"`
}

type ClickHouseSale struct {
	CustomerId string  `gorm:"column:customer_id;type:String"`
	ProductId  string  `gorm:"column:product_id;type:String"`
	Quantity   float64 `gorm:"column:quantity;type:Float64"`
}

// SQLDatabase stores sales in MySQL, PostgreSQL, ClickHouse or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	switch d.driver {
	case MySQL:
		if err := d.gormDB.Set("gorm:table_options", "ENGINE=InnoDB").
			AutoMigrate(SQLCustomer{}, SQLProduct{}, SQLSale{}); err != nil {
			return errors.Trace(err)
		}
	case Postgres, SQLite:
		if err := d.gormDB.AutoMigrate(SQLCustomer{}, SQLProduct{}, SQLSale{}); err != nil {
			return errors.Trace(err)
		}
	case ClickHouse:
		if err := d.gormDB.Set("gorm:table_options", "ENGINE = ReplacingMergeTree(version) ORDER BY customer_id").
			AutoMigrate(ClickHouseCustomer{}); err != nil {
			return errors.Trace(err)
		}
		if err := d.gormDB.Set("gorm:table_options", "ENGINE = ReplacingMergeTree(version) ORDER BY product_id").
			AutoMigrate(ClickHouseProduct{}); err != nil {
			return errors.Trace(err)
		}
		if err := d.gormDB.Set("gorm:table_options", "ENGINE = MergeTree() ORDER BY (customer_id, product_id)").
			AutoMigrate(ClickHouseSale{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Purge deletes all customers, products and sales.
func (d *SQLDatabase) Purge() error {
	for _, tableName := range []string{d.CustomersTable(), d.ProductsTable(), d.SalesTable()} {
		var err error
		if d.driver == ClickHouse {
			_, err = d.client.Exec("TRUNCATE TABLE " + tableName)
		} else {
			_, err = d.client.Exec("DELETE FROM " + tableName)
		}
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// BatchInsertCustomers inserts customers. Existing customers are overwritten.
func (d *SQLDatabase) BatchInsertCustomers(ctx context.Context, customers []Customer) error {
	defer observe(BatchInsertCustomersSeconds, time.Now())
	if len(customers) == 0 {
		return nil
	}
	tx := d.gormDB.WithContext(ctx)
	if d.driver == ClickHouse {
		now := time.Now().UTC()
		rows := lo.Map(customers, func(c Customer, _ int) ClickHouseCustomer {
			return ClickHouseCustomer{
				CustomerId:   c.CustomerId,
				Name:         c.Name,
				Email:        c.Email,
				Gender:       c.Gender,
				CustomerType: c.CustomerType,
				Version:      now,
			}
		})
		return errors.Trace(tx.CreateInBatches(&rows, batchSize).Error)
	}
	rows := lo.Map(lo.UniqBy(customers, func(c Customer) string { return c.CustomerId }),
		func(c Customer, _ int) SQLCustomer { return SQLCustomer(c) })
	return errors.Trace(tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&rows, batchSize).Error)
}

// BatchInsertProducts inserts products. Existing products are overwritten.
func (d *SQLDatabase) BatchInsertProducts(ctx context.Context, products []Product) error {
	defer observe(BatchInsertProductsSeconds, time.Now())
	if len(products) == 0 {
		return nil
	}
	tx := d.gormDB.WithContext(ctx)
	if d.driver == ClickHouse {
		now := time.Now().UTC()
		rows := lo.Map(products, func(p Product, _ int) ClickHouseProduct {
			return ClickHouseProduct{ProductId: p.ProductId, Name: p.Name, Version: now}
		})
		return errors.Trace(tx.CreateInBatches(&rows, batchSize).Error)
	}
	rows := lo.Map(lo.UniqBy(products, func(p Product) string { return p.ProductId }),
		func(p Product, _ int) SQLProduct { return SQLProduct(p) })
	return errors.Trace(tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&rows, batchSize).Error)
}

// BatchInsertSales appends sales lines.
func (d *SQLDatabase) BatchInsertSales(ctx context.Context, sales []Sale) error {
	defer observe(BatchInsertSalesSeconds, time.Now())
	if len(sales) == 0 {
		return nil
	}
	for _, chunk := range parallel.Chunk(sales, batchSize) {
		var err error
		if d.driver == ClickHouse {
			rows := lo.Map(chunk, func(s Sale, _ int) ClickHouseSale { return ClickHouseSale(s) })
			err = d.gormDB.WithContext(ctx).Create(&rows).Error
		} else {
			rows := lo.Map(chunk, func(s Sale, _ int) SQLSale { return SQLSale(s) })
			err = d.gormDB.WithContext(ctx).Create(&rows).Error
		}
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *SQLDatabase) customersTable() string {
	if d.driver == ClickHouse {
		return d.CustomersTable() + " FINAL"
	}
	return d.CustomersTable()
}

func (d *SQLDatabase) GetCustomers(ctx context.Context, customerType string) ([]Customer, error) {
	defer observe(GetCustomersSeconds, time.Now())
	tx := d.gormDB.WithContext(ctx).Table(d.customersTable()).
		Select("customer_id, name, email, gender, customer_type")
	if customerType != "" {
		tx = tx.Where("customer_type = ?", customerType)
	}
	customers := make([]Customer, 0)
	if err := tx.Order("customer_id").Scan(&customers).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return customers, nil
}

func (d *SQLDatabase) GetProducts(ctx context.Context) ([]Product, error) {
	defer observe(GetProductsSeconds, time.Now())
	tableName := d.ProductsTable()
	if d.driver == ClickHouse {
		tableName += " FINAL"
	}
	products := make([]Product, 0)
	if err := d.gormDB.WithContext(ctx).Table(tableName).Select("product_id, name").
		Order("product_id").Scan(&products).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return products, nil
}

func (d *SQLDatabase) GetTransactions(ctx context.Context, customerType string) ([]dataset.Transaction, error) {
	defer observe(GetTransactionsSeconds, time.Now())
	tx := d.gormDB.WithContext(ctx).Table(d.SalesTable()).
		Select("customer_id, product_id, SUM(quantity) AS quantity")
	if customerType != "" {
		tx = tx.Where("customer_id IN (SELECT customer_id FROM "+d.customersTable()+" WHERE customer_type = ?)", customerType)
	}
	transactions := make([]dataset.Transaction, 0)
	if err := tx.Group("customer_id, product_id").Order("customer_id, product_id").
		Scan(&transactions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return transactions, nil
}
