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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sse"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
)

var sseHeaders = map[string]string{
	"Content-Type":      "text/event-stream",
	"Cache-Control":     "no-cache",
	"Connection":        "keep-alive",
	"X-Accel-Buffering": "no",
}

func (c *basicController) setupSSEResponse() {
	for key, value := range sseHeaders {
		c.ctx.Writer.Header().Set(key, value)
	}
	if flusher, ok := c.ctx.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeSSEEvent serializes one frame and flushes it to the client.
// payload is marshaled to JSON as the frame data.
func (c *basicController) writeSSEEvent(eventName string, id uint64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}

	event := sse.Event{
		Event: eventName,
		Id:    fmt.Sprintf("%d", id),
		Data:  string(data),
	}
	if err := sse.Encode(c.ctx.Writer, event); err != nil {
		log.Error("StreamEvent.%s write error: %v", eventName, err)
		return err
	}

	if flusher, ok := c.ctx.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
