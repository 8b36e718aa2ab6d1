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

package broadcast

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/alibaba/opensandbox/statusd/pkg/util/safego"
)

// StartPeriodic publishes the value produced by produce to b every
// interval until stopCh is closed. The first publish happens
// immediately.
func StartPeriodic[T any](b *Broadcaster[T], produce func() T, interval time.Duration, stopCh <-chan struct{}) {
	safego.Go(func() {
		wait.Until(func() {
			b.Publish(produce())
		}, interval, stopCh)
	})
}
