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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/config"
	"github.com/cinematch-io/cinematch/engine"
	"github.com/cinematch-io/cinematch/server"
	"github.com/cinematch-io/cinematch/storage/cache"
)

var rootCommand = &cobra.Command{
	Use:   "cinematch",
	Short: "Real-time hybrid movie recommendation engine.",
	Run: func(cmd *cobra.Command, args []string) {
		debugMode, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debugMode)
		configPath, _ := cmd.PersistentFlags().GetString("config")
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		cacheStore, err := cache.Open(cfg.Cache.Store)
		if err != nil {
			log.Logger().Fatal("failed to connect cache store",
				zap.String("url", cfg.Cache.Store), zap.Error(err))
		}
		e, err := engine.NewEngine(cfg, cacheStore, engine.Collaborators{})
		if err != nil {
			log.Logger().Fatal("failed to create engine", zap.Error(err))
		}
		e.Start()
		restServer := server.NewRestServer(e, cfg.Server.HttpHost, cfg.Server.HttpPort)

		// graceful shutdown on SIGINT/SIGTERM
		done := make(chan struct{})
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			log.Logger().Info("shutdown signal received", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := restServer.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown rest server", zap.Error(err))
			}
			e.Shutdown()
			close(done)
		}()
		if err = restServer.Serve(); err != nil {
			log.Logger().Fatal("failed to serve", zap.Error(err))
		}
		<-done
	},
}

func init() {
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
