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

package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
)

// APIVersion is reported in every response envelope.
const APIVersion = "1.0"

// HealthStatus is the overall system health classification.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// HealthFromMetrics classifies health from CPU and memory usage.
func HealthFromMetrics(cpuUsage, memoryUsage float32) HealthStatus {
	switch {
	case cpuUsage > 90 || memoryUsage > 95:
		return HealthCritical
	case cpuUsage > 70 || memoryUsage > 80:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// ServerInfo identifies the serving process.
type ServerInfo struct {
	Hostname    string         `json:"hostname" validate:"required,hostname_rfc1123"`
	Version     string         `json:"version" validate:"required,semver"`
	StartTime   time.Time      `json:"start_time"`
	Environment string         `json:"environment" validate:"required,oneof=development staging production"`
	OSInfo      metrics.OSInfo `json:"os_info"`
}

func (s *ServerInfo) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.StartTime.After(time.Now()) {
		return fmt.Errorf("start time %s is in the future", s.StartTime.Format(time.RFC3339))
	}
	return s.OSInfo.Validate()
}

// Age returns how long the server has been running.
func (s *ServerInfo) Age() time.Duration {
	return time.Since(s.StartTime)
}

// StatusData is the payload of a status response.
type StatusData struct {
	ServerMetrics             metrics.Snapshot `json:"server_metrics"`
	CollectionIntervalSeconds uint32           `json:"collection_interval_seconds"`
	ServerInfo                ServerInfo       `json:"server_info"`
}

// NewStatusData builds and validates a status payload.
func NewStatusData(serverMetrics metrics.Snapshot, collectionIntervalSeconds uint32, serverInfo ServerInfo) (StatusData, error) {
	data := StatusData{
		ServerMetrics:             serverMetrics,
		CollectionIntervalSeconds: collectionIntervalSeconds,
		ServerInfo:                serverInfo,
	}
	if err := data.Validate(); err != nil {
		return StatusData{}, err
	}
	return data, nil
}

func (d *StatusData) Validate() error {
	if d.CollectionIntervalSeconds < 1 {
		return fmt.Errorf("collection interval must be at least 1 second, got %d", d.CollectionIntervalSeconds)
	}
	if err := d.ServerMetrics.Validate(); err != nil {
		return err
	}
	return d.ServerInfo.Validate()
}

// Health classifies the payload's metrics.
func (d *StatusData) Health() HealthStatus {
	return HealthFromMetrics(d.ServerMetrics.CPU.UsagePercentage, d.ServerMetrics.Memory.UsagePercentage)
}

// FormatUptime renders the uptime as a human-readable string.
func (d *StatusData) FormatUptime() string {
	uptime := d.ServerMetrics.Uptime.Std()
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d days, %d hours, %d minutes", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}

// Simplify strips extended load averages and packet counters for
// non-detailed views. Memory, headline CPU and byte counters survive.
func Simplify(snapshot metrics.Snapshot) metrics.Snapshot {
	snapshot.CPU.LoadAverage.FiveMinute = 0
	snapshot.CPU.LoadAverage.FifteenMinute = 0
	snapshot.Network.PacketsSent = 0
	snapshot.Network.PacketsReceived = 0
	return snapshot
}

// ServerStatusResponse is the envelope returned by the status endpoint.
type ServerStatusResponse struct {
	Data     StatusData       `json:"data"`
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata describes how the response was produced.
type ResponseMetadata struct {
	ResponseTimestamp time.Time `json:"response_timestamp"`
	Cached            bool      `json:"cached"`
	CollectionTimeMs  *uint64   `json:"collection_time_ms"`
	APIVersion        string    `json:"api_version"`
	Warnings          []string  `json:"warnings"`
}

// NewResponseMetadata fills the envelope defaults. Warnings is always a
// non-nil slice so the field serializes as [] rather than null.
func NewResponseMetadata(cached bool, collectionTimeMs uint64, warnings []string) ResponseMetadata {
	if warnings == nil {
		warnings = []string{}
	}
	return ResponseMetadata{
		ResponseTimestamp: time.Now().UTC(),
		Cached:            cached,
		CollectionTimeMs:  &collectionTimeMs,
		APIVersion:        APIVersion,
		Warnings:          warnings,
	}
}

// ErrorResponse is the envelope for failed requests.
type ErrorResponse struct {
	Error      string         `json:"error"`
	ErrorType  string         `json:"error_type"`
	Timestamp  time.Time      `json:"timestamp"`
	APIVersion string         `json:"api_version"`
	Details    map[string]any `json:"details,omitempty"`
}

func NewErrorResponse(message, errorType string) ErrorResponse {
	return ErrorResponse{
		Error:      message,
		ErrorType:  errorType,
		Timestamp:  time.Now().UTC(),
		APIVersion: APIVersion,
	}
}

func NewErrorResponseWithDetails(message, errorType string, details map[string]any) ErrorResponse {
	resp := NewErrorResponse(message, errorType)
	resp.Details = details
	return resp
}
