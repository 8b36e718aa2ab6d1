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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

const defaultCacheKey = "default"

// StatusController serves the server status and health endpoints.
type StatusController struct {
	*basicController
	deps *Dependencies
}

func NewStatusController(ctx *gin.Context, deps *Dependencies) *StatusController {
	return &StatusController{basicController: newBasicController(ctx), deps: deps}
}

// GetServerStatus returns current server metrics wrapped in the
// response envelope. Query parameters: detailed (default true),
// cache_key, force_refresh.
func (c *StatusController) GetServerStatus() {
	detailed := c.QueryBool("detailed", true)
	forceRefresh := c.QueryBool("force_refresh", false)
	cacheKey := c.ctx.Query("cache_key")
	if cacheKey == "" {
		cacheKey = defaultCacheKey
	}

	lookup, err := c.deps.Cache.Get(c.ctx.Request.Context(), cacheKey, forceRefresh)
	if err != nil {
		c.respondCollectionError(err)
		return
	}

	var warnings []string
	for _, warning := range lookup.Result.Warnings {
		warnings = append(warnings, fmt.Sprintf("Partial data warning: %s", warning.Error()))
	}
	if len(warnings) > 0 {
		log.Warn("partial metrics data returned with %d warnings", len(warnings))
	}

	snapshot := *lookup.Result.Snapshot
	if !detailed {
		snapshot = model.Simplify(snapshot)
	}

	if age := snapshot.StaleAge(); age > 0 {
		warnings = append(warnings, fmt.Sprintf("Timestamp is stale: %d seconds old", int(age.Seconds())))
	}
	if err := snapshot.Validate(); err != nil {
		log.Warn("metrics validation failed: %v", err)
		warnings = append(warnings, fmt.Sprintf("Validation warning: %s", err))
	}

	statusData, err := model.NewStatusData(snapshot, c.deps.CollectionIntervalSeconds, c.deps.ServerInfo)
	if err != nil {
		log.Warn("status data validation failed: %v", err)
		c.RespondError(http.StatusUnprocessableEntity, "validation_error",
			fmt.Sprintf("Validation error: %v", err))
		return
	}

	response := model.ServerStatusResponse{
		Data:     statusData,
		Metadata: model.NewResponseMetadata(lookup.Hit, uint64(lookup.CollectionTime.Milliseconds()), warnings),
	}
	c.RespondSuccess(response)
}

// GetServerHealth reports overall health plus cache and collector
// counters. Always answers 200; degradation shows in the status field.
func (c *StatusController) GetServerHealth() {
	status := model.HealthCritical

	lookup, err := c.deps.Cache.Get(c.ctx.Request.Context(), "health_check", false)
	if err == nil {
		switch {
		case lookup.Result.Partial():
			status = model.HealthWarning
		default:
			if data, dataErr := model.NewStatusData(*lookup.Result.Snapshot, c.deps.CollectionIntervalSeconds, c.deps.ServerInfo); dataErr != nil {
				status = model.HealthWarning
			} else {
				status = data.Health()
			}
		}
	}

	cacheStats := c.deps.Cache.Stats()
	collectorStats := c.deps.CollectorStats()

	c.RespondSuccess(gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"cache": gin.H{
			"hit_ratio": cacheStats.HitRatio,
			"entries":   cacheStats.Entries,
		},
		"metrics_service": gin.H{
			"successful_collections":     collectorStats.SuccessfulCollections,
			"failed_collections":         collectorStats.FailedCollections,
			"average_collection_time_ms": collectorStats.AverageCollectionTimeMs,
		},
		"api_version": model.APIVersion,
	})
}

// respondCollectionError maps the failure taxonomy to HTTP statuses:
// warnings still answer 200, recoverable outages 503, critical ones 500.
func (c *StatusController) respondCollectionError(err error) {
	var collectionErr *metrics.CollectionError
	if !errors.As(err, &collectionErr) {
		log.Error("failed to collect server metrics: %v", err)
		c.RespondError(http.StatusInternalServerError, "internal_error", fmt.Sprintf("Internal error: %v", err))
		return
	}

	log.Error("failed to collect server metrics: %v", collectionErr)

	details := map[string]any{
		"recoverable": collectionErr.Recoverable(),
		"severity":    collectionErr.Severity().String(),
	}
	if delay, ok := collectionErr.RetryDelay(); ok {
		details["retry_delay_ms"] = delay.Milliseconds()
	}

	message := fmt.Sprintf("Metrics collection error: %s", collectionErr.Error())
	switch collectionErr.Severity() {
	case metrics.SeverityWarning:
		c.RespondErrorWithDetails(http.StatusOK, "metrics_warning", message, details)
	case metrics.SeverityError:
		c.RespondErrorWithDetails(http.StatusServiceUnavailable, "metrics_error", message, details)
	default:
		c.RespondErrorWithDetails(http.StatusInternalServerError, "metrics_critical", message, details)
	}
}
