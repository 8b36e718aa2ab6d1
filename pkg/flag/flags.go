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

import "time"

var (
	// ServerPort controls the HTTP listener port.
	ServerPort int

	// ServerLogLevel controls the server log verbosity.
	ServerLogLevel int

	// ServerAccessToken guards API entrypoints when set.
	ServerAccessToken string

	// ServerEnvironment names the deployment environment reported by the API.
	ServerEnvironment string

	// CacheTTL is how long a cached metrics snapshot stays fresh.
	CacheTTL time.Duration

	// CacheMaxEntries bounds the number of cached snapshots.
	CacheMaxEntries int

	// CacheRefreshInterval is the background refresh scan period.
	CacheRefreshInterval time.Duration

	// CachePrefetchThreshold is the fraction of TTL remaining below which
	// an entry is proactively refreshed.
	CachePrefetchThreshold float64

	// CacheMaxConcurrentRefreshes caps refreshes started per scan.
	CacheMaxConcurrentRefreshes int

	// CollectionInterval is the advertised metrics collection cadence.
	CollectionInterval time.Duration

	// ApiGracefulShutdownTimeout waits before tearing down SSE streams.
	ApiGracefulShutdownTimeout time.Duration
)
