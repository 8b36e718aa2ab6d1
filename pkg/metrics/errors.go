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

package metrics

import (
	"fmt"
	"time"
)

// Severity orders collection failures by impact.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ErrorKind is the closed set of collection failure categories.
type ErrorKind string

const (
	KindSystemUnavailable     ErrorKind = "system_unavailable"
	KindPermissionDenied      ErrorKind = "permission_denied"
	KindParseError            ErrorKind = "parse_error"
	KindTimeout               ErrorKind = "timeout"
	KindOutOfMemory           ErrorKind = "out_of_memory"
	KindNetworkError          ErrorKind = "network_error"
	KindCPUError              ErrorKind = "cpu_error"
	KindMemoryError           ErrorKind = "memory_error"
	KindMultipleErrors        ErrorKind = "multiple_errors"
	KindServiceNotInitialized ErrorKind = "service_not_initialized"
	KindInternal              ErrorKind = "internal"
)

// CollectionError represents a failure in system metrics gathering. Kind
// selects the variant; the remaining fields are variant payload.
type CollectionError struct {
	Kind      ErrorKind          `json:"kind"`
	Reason    string             `json:"reason,omitempty"`
	Interface string             `json:"interface,omitempty"`
	TimeoutMs uint64             `json:"timeout_ms,omitempty"`
	Errors    []*CollectionError `json:"-"`
}

func (e *CollectionError) Error() string {
	switch e.Kind {
	case KindSystemUnavailable:
		return fmt.Sprintf("system information unavailable: %s", e.Reason)
	case KindPermissionDenied:
		return fmt.Sprintf("permission denied accessing system metrics: %s", e.Reason)
	case KindParseError:
		return fmt.Sprintf("failed to parse system data: %s", e.Reason)
	case KindTimeout:
		return fmt.Sprintf("metrics collection timed out after %dms", e.TimeoutMs)
	case KindOutOfMemory:
		return "insufficient memory to collect metrics"
	case KindNetworkError:
		return fmt.Sprintf("network interface error: %s - %s", e.Interface, e.Reason)
	case KindCPUError:
		return fmt.Sprintf("cpu metrics unavailable: %s", e.Reason)
	case KindMemoryError:
		return fmt.Sprintf("memory metrics unavailable: %s", e.Reason)
	case KindMultipleErrors:
		return fmt.Sprintf("multiple collection errors: %d errors", len(e.Errors))
	case KindServiceNotInitialized:
		return "metrics collection service not initialized"
	default:
		return fmt.Sprintf("internal error: %s", e.Reason)
	}
}

// Recoverable reports whether a retry is worthwhile. A MultipleErrors is
// recoverable when any contained error is.
func (e *CollectionError) Recoverable() bool {
	switch e.Kind {
	case KindTimeout, KindOutOfMemory, KindNetworkError, KindInternal:
		return true
	case KindMultipleErrors:
		for _, inner := range e.Errors {
			if inner.Recoverable() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Severity returns the error impact level. A MultipleErrors reports the
// maximum severity among its contained errors.
func (e *CollectionError) Severity() Severity {
	switch e.Kind {
	case KindTimeout, KindNetworkError, KindInternal:
		return SeverityWarning
	case KindOutOfMemory, KindServiceNotInitialized:
		return SeverityCritical
	case KindMultipleErrors:
		max := SeverityWarning
		for _, inner := range e.Errors {
			if s := inner.Severity(); s > max {
				max = s
			}
		}
		if len(e.Errors) == 0 {
			return SeverityError
		}
		return max
	default:
		return SeverityError
	}
}

// RetryDelay suggests how long to wait before retrying. ok is false when
// the error is not worth retrying. A MultipleErrors returns the minimum
// delay among its recoverable contained errors.
func (e *CollectionError) RetryDelay() (delay time.Duration, ok bool) {
	switch e.Kind {
	case KindTimeout, KindInternal:
		return time.Second, true
	case KindOutOfMemory:
		return 5 * time.Second, true
	case KindNetworkError:
		return 2 * time.Second, true
	case KindMultipleErrors:
		for _, inner := range e.Errors {
			if d, innerOK := inner.RetryDelay(); innerOK && (!ok || d < delay) {
				delay, ok = d, true
			}
		}
		return delay, ok
	default:
		return 0, false
	}
}

func SystemUnavailable(reason string) *CollectionError {
	return &CollectionError{Kind: KindSystemUnavailable, Reason: reason}
}

func PermissionDenied(resource string) *CollectionError {
	return &CollectionError{Kind: KindPermissionDenied, Reason: resource}
}

func ParseError(details string) *CollectionError {
	return &CollectionError{Kind: KindParseError, Reason: details}
}

func TimeoutError(timeout time.Duration) *CollectionError {
	return &CollectionError{Kind: KindTimeout, TimeoutMs: uint64(timeout.Milliseconds())}
}

func NetworkError(iface, reason string) *CollectionError {
	return &CollectionError{Kind: KindNetworkError, Interface: iface, Reason: reason}
}

func CPUError(reason string) *CollectionError {
	return &CollectionError{Kind: KindCPUError, Reason: reason}
}

func MemoryError(reason string) *CollectionError {
	return &CollectionError{Kind: KindMemoryError, Reason: reason}
}

func InternalError(message string) *CollectionError {
	return &CollectionError{Kind: KindInternal, Reason: message}
}

func MultipleErrors(errs []*CollectionError) *CollectionError {
	return &CollectionError{Kind: KindMultipleErrors, Errors: errs}
}

// Result is the outcome of a collection attempt that produced usable data.
// A non-empty Warnings slice marks partial data: some sub-collections
// failed and their fields carry defaults.
type Result struct {
	Snapshot *Snapshot
	Warnings []*CollectionError
}

// Partial reports whether any sub-collection failed.
func (r Result) Partial() bool {
	return len(r.Warnings) > 0
}
