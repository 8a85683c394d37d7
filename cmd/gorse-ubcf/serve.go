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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorse-io/gorse-ubcf/base/log"
	"github.com/gorse-io/gorse-ubcf/config"
	"github.com/gorse-io/gorse-ubcf/server"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Analyze sales and serve recommendations over HTTP.",
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
		return serve(conf, db)
	},
}

func init() {
	rootCommand.AddCommand(serveCommand)
}

func serve(conf *config.Config, db data.Database) error {
	tracerProvider, err := conf.Tracing.NewTracerProvider()
	if err != nil {
		return errors.Trace(err)
	}
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	s := server.NewRestServer(conf, db)
	if err := s.Refresh(context.Background()); err != nil {
		// the server answers 503 until a successful refresh
		log.Logger().Error("failed to analyze sales", zap.Error(err))
	}
	// stop server
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			log.Logger().Error("failed to shutdown http server", zap.Error(err))
		}
		if err := config.ShutdownTracerProvider(ctx, tracerProvider); err != nil {
			log.Logger().Error("failed to shutdown tracer provider", zap.Error(err))
		}
		close(done)
	}()
	if err := s.StartHttpServer(); err != nil {
		return errors.Trace(err)
	}
	<-done
	log.Logger().Info("stop gorse-ubcf successfully")
	return nil
}
