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

package flag

import (
	"flag"
	stdlog "log"
	"os"
	"time"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
)

const (
	environmentEnv             = "STATUSD_ENVIRONMENT"
	accessTokenEnv             = "STATUSD_ACCESS_TOKEN"
	gracefulShutdownTimeoutEnv = "STATUSD_API_GRACE_SHUTDOWN"
)

// InitFlags registers CLI flags and env overrides.
func InitFlags() {
	// Set default values
	ServerPort = 44710
	ServerLogLevel = 6
	ServerAccessToken = ""
	ServerEnvironment = "development"
	CacheTTL = 30 * time.Second
	CacheMaxEntries = 1000
	CacheRefreshInterval = 10 * time.Second
	CachePrefetchThreshold = 0.2
	CacheMaxConcurrentRefreshes = 3
	CollectionInterval = 5 * time.Second
	ApiGracefulShutdownTimeout = time.Second * 1

	// First, set default values from environment variables
	if envFromEnv := os.Getenv(environmentEnv); envFromEnv != "" {
		switch envFromEnv {
		case "development", "staging", "production":
			ServerEnvironment = envFromEnv
		default:
			stdlog.Panicf("Invalid %s: must be development, staging or production", environmentEnv)
		}
	}

	if tokenFromEnv := os.Getenv(accessTokenEnv); tokenFromEnv != "" {
		ServerAccessToken = tokenFromEnv
	}

	if graceShutdownTimeout := os.Getenv(gracefulShutdownTimeoutEnv); graceShutdownTimeout != "" {
		duration, err := time.ParseDuration(graceShutdownTimeout)
		if err != nil {
			stdlog.Panicf("Failed to parse graceful shutdown timeout from env: %v", err)
		}
		ApiGracefulShutdownTimeout = duration
	}

	// Then define flags with current values as defaults
	flag.IntVar(&ServerPort, "port", ServerPort, "Server listening port (default: 44710)")
	flag.IntVar(&ServerLogLevel, "log-level", ServerLogLevel, "Server log level (0-2=Fatal, 3=Error, 4=Warning, 5/6=Info, 7+=Debug, default: 6)")
	flag.StringVar(&ServerAccessToken, "access-token", ServerAccessToken, "Server access token for API authentication")
	flag.StringVar(&ServerEnvironment, "environment", ServerEnvironment, "Deployment environment: development, staging or production")
	flag.DurationVar(&CacheTTL, "cache-ttl", CacheTTL, "Time-to-live for cached metrics snapshots")
	flag.IntVar(&CacheMaxEntries, "cache-max-entries", CacheMaxEntries, "Maximum number of cached metrics entries")
	flag.DurationVar(&CacheRefreshInterval, "cache-refresh-interval", CacheRefreshInterval, "Background cache refresh scan interval")
	flag.Float64Var(&CachePrefetchThreshold, "cache-prefetch-threshold", CachePrefetchThreshold, "Fraction of TTL remaining that triggers a background refresh")
	flag.IntVar(&CacheMaxConcurrentRefreshes, "cache-max-concurrent-refreshes", CacheMaxConcurrentRefreshes, "Maximum concurrent background refresh operations")
	flag.DurationVar(&CollectionInterval, "collection-interval", CollectionInterval, "Advertised metrics collection interval")
	flag.DurationVar(&ApiGracefulShutdownTimeout, "graceful-shutdown-timeout", ApiGracefulShutdownTimeout, "API graceful shutdown timeout duration")

	// Parse flags - these will override environment variables if provided
	flag.Parse()

	log.Info("Server environment is: %s", ServerEnvironment)
	log.Info("Cache TTL is: %s, max entries: %d", CacheTTL, CacheMaxEntries)
}
