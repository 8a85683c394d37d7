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
	"math/rand"
	"time"

	"github.com/gorse-io/gorse-ubcf/base/log"
	"github.com/gorse-io/gorse-ubcf/config"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var playgroundCommand = &cobra.Command{
	Use:   "playground",
	Short: "Serve recommendations over a generated SQLite data store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.GetDefaultConfig()
		path, _ := cmd.Flags().GetString("data")
		conf.Database.DataStore = "sqlite://" + path
		conf.Server.Port, _ = cmd.Flags().GetInt("port")
		db, err := openDatabase(conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer db.Close()

		nCustomers, _ := cmd.Flags().GetInt("customers")
		nProducts, _ := cmd.Flags().GetInt("products")
		nSales, _ := cmd.Flags().GetInt("sales")
		seed, _ := cmd.Flags().GetInt64("seed")
		if !cmd.Flags().Changed("seed") {
			seed = time.Now().UnixNano()
		}
		fake := faker.NewWithSeed(rand.NewSource(seed))
		if err = seedPlayground(context.Background(), db, fake, nCustomers, nProducts, nSales); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("playground data generated",
			zap.Int("n_customers", nCustomers),
			zap.Int("n_products", nProducts),
			zap.Int("n_sales", nSales),
			zap.Int64("seed", seed))
		return serve(conf, db)
	},
}

func init() {
	rootCommand.AddCommand(playgroundCommand)
	playgroundCommand.Flags().String("data", "playground.db", "path of the SQLite data store")
	playgroundCommand.Flags().Int("port", 8087, "port of the HTTP server")
	playgroundCommand.Flags().Int("customers", 500, "number of customers")
	playgroundCommand.Flags().Int("products", 100, "number of products")
	playgroundCommand.Flags().Int("sales", 10000, "number of sales")
	playgroundCommand.Flags().Int64("seed", 0, "random seed (default current time)")
}

// seedPlayground replaces the content of the data store with generated data.
func seedPlayground(ctx context.Context, db data.Database, fake faker.Faker, nCustomers, nProducts, nSales int) error {
	if err := db.Purge(); err != nil {
		return errors.Trace(err)
	}
	playground := data.NewPlayground(fake, nCustomers, nProducts, nSales)
	if err := insertBatches(playground.Customers, func(batch []data.Customer) error {
		return db.BatchInsertCustomers(ctx, batch)
	}); err != nil {
		return errors.Trace(err)
	}
	if err := insertBatches(playground.Products, func(batch []data.Product) error {
		return db.BatchInsertProducts(ctx, batch)
	}); err != nil {
		return errors.Trace(err)
	}
	return insertBatches(playground.Sales, func(batch []data.Sale) error {
		return db.BatchInsertSales(ctx, batch)
	})
}
