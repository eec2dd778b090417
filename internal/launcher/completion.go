/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package launcher

import (
	"context"
	"sync"

	"github.com/seatunnel/launcher/internal/process"
)

// Completion is the pending result of a destroy. It resolves exactly once.
// Completion 是销毁操作的待定结果，只会完成一次。
type Completion struct {
	done   chan struct{}
	once   sync.Once
	err    error
	result process.ExitResult
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// failedCompletion returns an already resolved completion carrying err
func failedCompletion(err error) *Completion {
	c := newCompletion()
	c.resolve(process.ExitResult{}, err)
	return c
}

func (c *Completion) resolve(result process.ExitResult, err error) {
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
	})
}

// Done is closed once the completion resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the completion resolves or ctx ends. Giving up on ctx does
// not cancel the destroy.
// Wait 阻塞直到完成或 ctx 结束。ctx 结束不会取消销毁。
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the outcome, nil while pending.
// Err 返回结果，未完成时为 nil。
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// ExitStatus returns the raw wait status observed by the exit-wait, nil while
// pending or when none was observed.
// ExitStatus 返回退出等待观察到的原始等待状态，未完成或未观察到时为 nil。
func (c *Completion) ExitStatus() *int {
	select {
	case <-c.done:
		return c.result.Status
	default:
		return nil
	}
}
