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

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/web/controller"
)

// ApiAccessTokenHeader carries the optional shared access token.
const ApiAccessTokenHeader = "X-Api-Access-Token"

// NewRouter builds a Gin engine with all statusd routes.
func NewRouter(accessToken string, deps *controller.Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logMiddleware(), securityHeadersMiddleware(), accessTokenMiddleware(accessToken))

	r.GET("/ping", controller.PingHandler)

	api := r.Group("/api")
	{
		api.GET("/server-status", withStatus(deps, func(c *controller.StatusController) { c.GetServerStatus() }))
		api.GET("/server-status/health", withStatus(deps, func(c *controller.StatusController) { c.GetServerHealth() }))

		api.GET("/server-status-stream", withStream(deps, func(c *controller.StreamController) { c.StreamServerStatus() }))
		api.GET("/server-status-stream/info", withStream(deps, func(c *controller.StreamController) { c.GetStreamInfo() }))
		api.GET("/server-status-ws", withWebSocket(deps, func(c *controller.WebSocketController) { c.StreamServerStatus() }))

		api.GET("/time-stream", withTimeStream(deps, func(c *controller.TimeStreamController) { c.StreamTime() }))
		api.GET("/health", withTimeStream(deps, func(c *controller.TimeStreamController) { c.ServiceHealth() }))
		api.GET("/status", withTimeStream(deps, func(c *controller.TimeStreamController) { c.ServiceStatus() }))
		api.POST("/broadcast", withTimeStream(deps, func(c *controller.TimeStreamController) { c.ManualTimeBroadcast() }))
	}

	return r
}

func withStatus(deps *controller.Dependencies, fn func(*controller.StatusController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewStatusController(ctx, deps))
	}
}

func withStream(deps *controller.Dependencies, fn func(*controller.StreamController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewStreamController(ctx, deps))
	}
}

func withWebSocket(deps *controller.Dependencies, fn func(*controller.WebSocketController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewWebSocketController(ctx, deps))
	}
}

func withTimeStream(deps *controller.Dependencies, fn func(*controller.TimeStreamController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewTimeStreamController(ctx, deps))
	}
}

func accessTokenMiddleware(token string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token == "" {
			ctx.Next()
			return
		}

		requestedToken := ctx.GetHeader(ApiAccessTokenHeader)
		if requestedToken == "" || requestedToken != token {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, map[string]any{
				"error": "Unauthorized: invalid or missing header " + ApiAccessTokenHeader,
			})
			return
		}

		ctx.Next()
	}
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.Writer.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, "+ApiAccessTokenHeader)
		header.Set("Access-Control-Max-Age", "3600")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("X-XSS-Protection", "1; mode=block")
		header.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}

func logMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		log.Info("Requested: %v - %v", ctx.Request.Method, ctx.Request.URL.String())
		ctx.Next()
	}
}
