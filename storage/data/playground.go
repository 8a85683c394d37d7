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
	"strconv"

	"github.com/jaswdr/faker"
)

const (
	PersonCustomer  = "Person"
	CompanyCustomer = "Company"
)

// Playground is a generated catalog with sales, used for demos and tests.
type Playground struct {
	Customers []Customer
	Products  []Product
	Sales     []Sale
}

// NewPlayground generates nCustomers customers, nProducts products and
// nSales sales lines. One customer in ten is a company.
func NewPlayground(fake faker.Faker, nCustomers, nProducts, nSales int) *Playground {
	p := &Playground{
		Customers: make([]Customer, 0, nCustomers),
		Products:  make([]Product, 0, nProducts),
		Sales:     make([]Sale, 0, nSales),
	}
	for i := 1; i <= nCustomers; i++ {
		customerType := PersonCustomer
		if i%10 == 0 {
			customerType = CompanyCustomer
		}
		p.Customers = append(p.Customers, Customer{
			CustomerId:   strconv.Itoa(i),
			Name:         fake.Person().Name(),
			Email:        fake.Internet().Email(),
			Gender:       fake.RandomStringElement([]string{"M", "F"}),
			CustomerType: customerType,
		})
	}
	for i := 1; i <= nProducts; i++ {
		p.Products = append(p.Products, Product{
			ProductId: strconv.Itoa(i),
			Name:      fake.Lorem().Word() + " " + strconv.Itoa(i),
		})
	}
	if nCustomers == 0 || nProducts == 0 {
		return p
	}
	for i := 0; i < nSales; i++ {
		p.Sales = append(p.Sales, Sale{
			CustomerId: strconv.Itoa(fake.IntBetween(1, nCustomers)),
			ProductId:  strconv.Itoa(fake.IntBetween(1, nProducts)),
			Quantity:   float64(fake.IntBetween(1, 10)),
		})
	}
	return p
}
