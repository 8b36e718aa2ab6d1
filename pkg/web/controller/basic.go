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
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

type basicController struct {
	ctx *gin.Context
}

func newBasicController(ctx *gin.Context) *basicController {
	return &basicController{ctx: ctx}
}

func (c *basicController) RespondError(status int, errorType, message string) {
	c.ctx.JSON(status, model.NewErrorResponse(message, errorType))
}

func (c *basicController) RespondErrorWithDetails(status int, errorType, message string, details map[string]any) {
	c.ctx.JSON(status, model.NewErrorResponseWithDetails(message, errorType, details))
}

func (c *basicController) RespondSuccess(data any) {
	if data == nil {
		c.ctx.Status(http.StatusOK)
		return
	}
	c.ctx.JSON(http.StatusOK, data)
}

func (c *basicController) QueryBool(query string, defaultValue bool) bool {
	raw := c.ctx.Query(query)
	if raw == "" {
		return defaultValue
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return val
}

func (c *basicController) QueryUint32(query string, defaultValue uint32) uint32 {
	raw := c.ctx.Query(query)
	if raw == "" {
		return defaultValue
	}
	val, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return defaultValue
	}
	return uint32(val)
}

// QueryList splits a comma-separated query parameter, keeping only
// values in allowed. Returns nil when the parameter is absent.
func (c *basicController) QueryList(query string, allowed []string) []string {
	raw := c.ctx.Query(query)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		for _, candidate := range allowed {
			if part == candidate {
				values = append(values, part)
				break
			}
		}
	}
	return values
}

// PingHandler answers liveness probes.
func PingHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, "pong")
}
