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
	"fmt"
	"io"
	"strings"

	"github.com/gorse-io/gorse-ubcf/engine"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend <customer-id>",
	Short: "Print recommendations for a customer.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		if cmd.Flags().Changed("neighbors") {
			conf.Recommend.NumNeighbors, _ = cmd.Flags().GetInt("neighbors")
		}
		if cmd.Flags().Changed("recommendations") {
			conf.Recommend.NumRecommendations, _ = cmd.Flags().GetInt("recommendations")
		}
		db, err := openDatabase(conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer db.Close()
		snapshot, err := engine.LoadMatrix(context.Background(), db, conf)
		if err != nil {
			return errors.Trace(err)
		}
		report, err := snapshot.Recommend(args[0], conf.Recommend.NumNeighbors, conf.Recommend.NumRecommendations)
		if err != nil {
			return errors.Trace(err)
		}
		return renderReport(cmd.OutOrStdout(), report)
	},
}

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics of the interaction matrix.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		db, err := openDatabase(conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer db.Close()
		snapshot, err := engine.LoadMatrix(context.Background(), db, conf)
		if err != nil {
			return errors.Trace(err)
		}
		return renderStats(cmd.OutOrStdout(), snapshot.Stats())
	},
}

func init() {
	rootCommand.AddCommand(recommendCommand, statsCommand)
	recommendCommand.Flags().IntP("neighbors", "k", 0, "number of neighbors (default from config)")
	recommendCommand.Flags().IntP("recommendations", "n", 0, "number of recommendations (default from config)")
}

func renderReport(w io.Writer, report *engine.Report) error {
	if _, err := fmt.Fprintf(w, "Customer: %s (%s)\n", report.Customer.Name, report.Customer.CustomerId); err != nil {
		return errors.Trace(err)
	}

	// purchased products
	table := tablewriter.NewWriter(w)
	table.Header("Product", "Name")
	for _, product := range report.Purchased {
		if err := table.Append([]string{product.ProductId, product.Name}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}

	// neighbors
	table = tablewriter.NewWriter(w)
	table.Header("#", "Neighbor", "Name", "Similarity")
	for i, neighbor := range report.Neighbors {
		if err := table.Append([]string{
			fmt.Sprint(i + 1),
			neighbor.CustomerId,
			neighbor.Name,
			fmt.Sprintf("%.2f%%", neighbor.Percent),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}

	// recommendations
	table = tablewriter.NewWriter(w)
	table.Header("#", "Product", "Name", "Confidence", "Supported By")
	for i, recommendation := range report.Recommendations {
		if err := table.Append([]string{
			fmt.Sprint(i + 1),
			recommendation.ProductId,
			recommendation.Name,
			fmt.Sprintf("%.2f%%", recommendation.Confidence),
			fmt.Sprintf("%d (%s)", recommendation.NumSupporting, strings.Join(recommendation.SupportingNeighbors, ", ")),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}

	_, err := fmt.Fprintf(w, "Purchased: %d, neighbors: %d, candidates: %d, max similarity: %.2f%%\n",
		len(report.Purchased), len(report.Neighbors), report.NumCandidates, report.MaxSimilarity)
	return errors.Trace(err)
}

func renderStats(w io.Writer, stats engine.Stats) error {
	table := tablewriter.NewWriter(w)
	table.Header("Status", "Value")
	for _, row := range [][]string{
		{"customers", fmt.Sprint(stats.NumCustomers)},
		{"products", fmt.Sprint(stats.NumProducts)},
		{"transactions", fmt.Sprint(stats.NumTransactions)},
		{"density", fmt.Sprintf("%.2f%%", stats.Density)},
		{"timestamp", stats.Timestamp.Format("2006-01-02 15:04:05")},
	} {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
