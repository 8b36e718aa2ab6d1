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

package controller

import (
	"github.com/alibaba/opensandbox/statusd/pkg/broadcast"
	"github.com/alibaba/opensandbox/statusd/pkg/cache"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

// Dependencies are the shared handles controllers operate on. One
// instance is built at startup and injected through the router.
type Dependencies struct {
	Cache                     *cache.Cache
	Collector                 metrics.Collector
	TimeEvents                *broadcast.Broadcaster[model.TimeEvent]
	ServerInfo                model.ServerInfo
	CollectionIntervalSeconds uint32
}

// statsProvider is implemented by collectors that track performance
// counters, like metrics.SystemCollector.
type statsProvider interface {
	Stats() metrics.CollectionStats
}

// CollectorStats returns the collector's counters when available.
func (d *Dependencies) CollectorStats() metrics.CollectionStats {
	if provider, ok := d.Collector.(statsProvider); ok {
		return provider.Stats()
	}
	return metrics.CollectionStats{}
}
