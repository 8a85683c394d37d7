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

package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gorse-io/gorse-ubcf/base/log"
	"github.com/gorse-io/gorse-ubcf/common/parallel"
	"github.com/gorse-io/gorse-ubcf/common/util"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const importBatchSize = 1000

var importCommand = &cobra.Command{
	Use:       "import {customers|products|sales} <csv>",
	Short:     "Import customers, products or sales from a CSV file with a header row.",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"customers", "products", "sales"},
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		file, err := os.Open(args[1])
		if err != nil {
			return errors.Trace(err)
		}
		defer file.Close()
		db, err := openDatabase(conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer db.Close()
		n, err := importCSV(context.Background(), db, args[0], file)
		if err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("import complete", zap.String("table", args[0]), zap.Int("n_rows", n))
		return nil
	},
}

func init() {
	rootCommand.AddCommand(importCommand)
}

// importCSV inserts rows of a CSV file into a table and returns the number of rows.
func importCSV(ctx context.Context, db data.Database, table string, r io.Reader) (int, error) {
	switch table {
	case "customers":
		customers, err := readCustomers(r)
		if err != nil {
			return 0, errors.Trace(err)
		}
		return len(customers), insertBatches(customers, func(batch []data.Customer) error {
			return db.BatchInsertCustomers(ctx, batch)
		})
	case "products":
		products, err := readProducts(r)
		if err != nil {
			return 0, errors.Trace(err)
		}
		return len(products), insertBatches(products, func(batch []data.Product) error {
			return db.BatchInsertProducts(ctx, batch)
		})
	case "sales":
		sales, err := readSales(r)
		if err != nil {
			return 0, errors.Trace(err)
		}
		return len(sales), insertBatches(sales, func(batch []data.Sale) error {
			return db.BatchInsertSales(ctx, batch)
		})
	default:
		return 0, errors.NotSupportedf("table %s", table)
	}
}

func insertBatches[T any](rows []T, insert func([]T) error) error {
	bar := progressbar.Default(int64(len(rows)), "Importing")
	for _, batch := range parallel.Chunk(rows, importBatchSize) {
		if err := insert(batch); err != nil {
			return errors.Trace(err)
		}
		_ = bar.Add(len(batch))
	}
	return errors.Trace(bar.Finish())
}

// csvTable is a CSV file whose columns are addressed by header names.
type csvTable struct {
	columns map[string]int
	records [][]string
}

func readTable(r io.Reader, required ...string) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NotValidf("empty CSV file")
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	table := &csvTable{columns: make(map[string]int, len(header))}
	for i, name := range header {
		table.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := table.columns[name]; !ok {
			return nil, errors.NotValidf("CSV header without column %s", name)
		}
	}
	table.records, err = reader.ReadAll()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return table, nil
}

// get returns a field of a record, or an empty string if the column is absent.
func (t *csvTable) get(record []string, column string) string {
	if i, ok := t.columns[column]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

func readCustomers(r io.Reader) ([]data.Customer, error) {
	table, err := readTable(r, "customer_id")
	if err != nil {
		return nil, errors.Trace(err)
	}
	customers := make([]data.Customer, 0, len(table.records))
	for line, record := range table.records {
		customer := data.Customer{
			CustomerId:   table.get(record, "customer_id"),
			Name:         table.get(record, "name"),
			Email:        table.get(record, "email"),
			Gender:       table.get(record, "gender"),
			CustomerType: table.get(record, "customer_type"),
		}
		if customer.CustomerId == "" {
			return nil, errors.NotValidf("empty customer_id at line %d", line+2)
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func readProducts(r io.Reader) ([]data.Product, error) {
	table, err := readTable(r, "product_id")
	if err != nil {
		return nil, errors.Trace(err)
	}
	products := make([]data.Product, 0, len(table.records))
	for line, record := range table.records {
		product := data.Product{
			ProductId: table.get(record, "product_id"),
			Name:      table.get(record, "name"),
		}
		if product.ProductId == "" {
			return nil, errors.NotValidf("empty product_id at line %d", line+2)
		}
		products = append(products, product)
	}
	return products, nil
}

func readSales(r io.Reader) ([]data.Sale, error) {
	table, err := readTable(r, "customer_id", "product_id", "quantity")
	if err != nil {
		return nil, errors.Trace(err)
	}
	sales := make([]data.Sale, 0, len(table.records))
	for line, record := range table.records {
		sale := data.Sale{
			CustomerId: table.get(record, "customer_id"),
			ProductId:  table.get(record, "product_id"),
		}
		if sale.CustomerId == "" || sale.ProductId == "" {
			return nil, errors.NotValidf("empty id at line %d", line+2)
		}
		sale.Quantity, err = util.ParseFloat[float64](table.get(record, "quantity"))
		if err != nil {
			return nil, errors.NotValidf("quantity %q at line %d", table.get(record, "quantity"), line+2)
		}
		sales = append(sales, sale)
	}
	return sales, nil
}
