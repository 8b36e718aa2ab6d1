// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/alibaba/opensandbox/statusd/pkg/broadcast"
	"github.com/alibaba/opensandbox/statusd/pkg/cache"
	"github.com/alibaba/opensandbox/statusd/pkg/flag"
	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	_ "github.com/alibaba/opensandbox/statusd/pkg/util/safego"
	"github.com/alibaba/opensandbox/statusd/pkg/web"
	"github.com/alibaba/opensandbox/statusd/pkg/web/controller"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

// Version is the service version reported by the API.
const Version = "1.0.0"

// main initializes and starts the statusd server.
func main() {
	flag.InitFlags()

	log.SetLevel(flag.ServerLogLevel)
	defer log.Sync()

	collector := metrics.NewSystemCollector()

	metricsCache := cache.New(collector, cache.Config{
		TTL:                    flag.CacheTTL,
		MaxEntries:             flag.CacheMaxEntries,
		RefreshInterval:        flag.CacheRefreshInterval,
		PrefetchThreshold:      flag.CachePrefetchThreshold,
		MaxConcurrentRefreshes: flag.CacheMaxConcurrentRefreshes,
	})
	metricsCache.StartBackgroundRefresh()
	defer metricsCache.StopBackgroundRefresh()

	timeEvents := broadcast.NewBroadcaster[model.TimeEvent]()
	defer timeEvents.Close()
	broadcastStop := make(chan struct{})
	defer close(broadcastStop)
	broadcast.StartPeriodic(timeEvents, model.NewTimeEvent, controller.TimeBroadcastInterval, broadcastStop)

	deps := &controller.Dependencies{
		Cache:                     metricsCache,
		Collector:                 collector,
		TimeEvents:                timeEvents,
		ServerInfo:                buildServerInfo(collector),
		CollectionIntervalSeconds: uint32(flag.CollectionInterval.Seconds()),
	}

	engine := web.NewRouter(flag.ServerAccessToken, deps)
	addr := fmt.Sprintf(":%d", flag.ServerPort)
	server := &http.Server{Addr: addr, Handler: engine}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("statusd listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start statusd server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), flag.ApiGracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown: %v", err)
	}
	log.Info("statusd shutdown complete")
}

// buildServerInfo assembles the identity reported by the API. Detection
// failures fall back to values that still pass validation.
func buildServerInfo(collector *metrics.SystemCollector) model.ServerInfo {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		log.Warn("hostname detection failed: %v, using localhost", err)
		hostname = "localhost"
	}

	osInfo, err := collector.CollectOSInfo(context.Background())
	if err != nil {
		log.Warn("os detection failed: %v, using fallback", err)
		osInfo = metrics.FallbackOSInfo()
	}

	info := model.ServerInfo{
		Hostname:    hostname,
		Version:     Version,
		StartTime:   time.Now().UTC(),
		Environment: flag.ServerEnvironment,
		OSInfo:      osInfo,
	}
	if err := info.Validate(); err != nil {
		log.Warn("server info validation failed: %v, using localhost identity", err)
		info.Hostname = "localhost"
	}
	return info
}
