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
	"time"

	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/gorse-io/gorse-ubcf/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

// Init collections and indices in MongoDB.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	// list collections
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	// create collections
	for _, name := range []string{db.CustomersTable(), db.ProductsTable(), db.SalesTable()} {
		if !lo.Contains(collections, name) {
			if err = d.CreateCollection(ctx, name); err != nil {
				return errors.Trace(err)
			}
		}
	}
	// create index
	if _, err = d.Collection(db.CustomersTable()).Indexes().CreateMany(ctx, []mongo.IndexModel{{
		Keys:    bson.M{"customer_id": 1},
		Options: options.Index().SetUnique(true),
	}, {
		Keys: bson.M{"customer_type": 1},
	}}); err != nil {
		return errors.Trace(err)
	}
	if _, err = d.Collection(db.ProductsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"product_id": 1},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(db.SalesTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "product_id", Value: 1}},
	})
	return errors.Trace(err)
}

// Purge deletes all documents from MongoDB.
func (db *MongoDB) Purge() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	for _, name := range []string{db.CustomersTable(), db.ProductsTable(), db.SalesTable()} {
		if _, err := d.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Close connection to MongoDB.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

// BatchInsertCustomers upserts customers into MongoDB.
func (db *MongoDB) BatchInsertCustomers(ctx context.Context, customers []Customer) error {
	defer observe(BatchInsertCustomersSeconds, time.Now())
	if len(customers) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.CustomersTable())
	var models []mongo.WriteModel
	for _, customer := range customers {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"customer_id": bson.M{"$eq": customer.CustomerId}}).
			SetUpdate(bson.M{"$set": customer}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

// BatchInsertProducts upserts products into MongoDB.
func (db *MongoDB) BatchInsertProducts(ctx context.Context, products []Product) error {
	defer observe(BatchInsertProductsSeconds, time.Now())
	if len(products) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.ProductsTable())
	var models []mongo.WriteModel
	for _, product := range products {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"product_id": bson.M{"$eq": product.ProductId}}).
			SetUpdate(bson.M{"$set": product}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

// BatchInsertSales appends sales lines to MongoDB.
func (db *MongoDB) BatchInsertSales(ctx context.Context, sales []Sale) error {
	defer observe(BatchInsertSalesSeconds, time.Now())
	if len(sales) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.SalesTable())
	_, err := c.InsertMany(ctx, lo.Map(sales, func(sale Sale, _ int) any { return sale }))
	return errors.Trace(err)
}

func (db *MongoDB) GetCustomers(ctx context.Context, customerType string) ([]Customer, error) {
	defer observe(GetCustomersSeconds, time.Now())
	c := db.client.Database(db.dbName).Collection(db.CustomersTable())
	filter := bson.M{}
	if customerType != "" {
		filter["customer_type"] = bson.M{"$eq": customerType}
	}
	r, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "customer_id", Value: 1}}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	customers := make([]Customer, 0)
	for r.Next(ctx) {
		var customer Customer
		if err = r.Decode(&customer); err != nil {
			return nil, errors.Trace(err)
		}
		customers = append(customers, customer)
	}
	return customers, errors.Trace(r.Err())
}

func (db *MongoDB) GetProducts(ctx context.Context) ([]Product, error) {
	defer observe(GetProductsSeconds, time.Now())
	c := db.client.Database(db.dbName).Collection(db.ProductsTable())
	r, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "product_id", Value: 1}}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	products := make([]Product, 0)
	for r.Next(ctx) {
		var product Product
		if err = r.Decode(&product); err != nil {
			return nil, errors.Trace(err)
		}
		products = append(products, product)
	}
	return products, errors.Trace(r.Err())
}

func (db *MongoDB) GetTransactions(ctx context.Context, customerType string) ([]dataset.Transaction, error) {
	defer observe(GetTransactionsSeconds, time.Now())
	c := db.client.Database(db.dbName).Collection(db.SalesTable())
	var pipeline mongo.Pipeline
	if customerType != "" {
		pipeline = append(pipeline,
			bson.D{{Key: "$lookup", Value: bson.M{
				"from":         db.CustomersTable(),
				"localField":   "customer_id",
				"foreignField": "customer_id",
				"as":           "customer",
			}}},
			bson.D{{Key: "$match", Value: bson.M{"customer.customer_type": customerType}}},
		)
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{
			"_id":      bson.M{"customer_id": "$customer_id", "product_id": "$product_id"},
			"quantity": bson.M{"$sum": "$quantity"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id.customer_id", Value: 1}, {Key: "_id.product_id", Value: 1}}}},
	)
	r, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	transactions := make([]dataset.Transaction, 0)
	for r.Next(ctx) {
		var doc struct {
			Id struct {
				CustomerId string `bson:"customer_id"`
				ProductId  string `bson:"product_id"`
			} `bson:"_id"`
			Quantity float64 `bson:"quantity"`
		}
		if err = r.Decode(&doc); err != nil {
			return nil, errors.Trace(err)
		}
		transactions = append(transactions, dataset.Transaction{
			CustomerId: doc.Id.CustomerId,
			ProductId:  doc.Id.ProductId,
			Quantity:   doc.Quantity,
		})
	}
	return transactions, errors.Trace(r.Err())
}
