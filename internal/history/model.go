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

// Package history records the lifecycle of launched containers in a database.
// history 包将已启动容器的生命周期记录到数据库中。
package history

import (
	"errors"
	"time"
)

// RunStatus represents the state of one container run.
// RunStatus 表示一次容器运行的状态。
type RunStatus string

const (
	// RunStatusRunning indicates the container is tracked by the launcher.
	// RunStatusRunning 表示容器正被启动器跟踪。
	RunStatusRunning RunStatus = "running"
	// RunStatusExited indicates the container was destroyed and reaped.
	// RunStatusExited 表示容器已被销毁并回收。
	RunStatusExited RunStatus = "exited"
	// RunStatusFailed indicates the destroy did not complete cleanly.
	// RunStatusFailed 表示销毁未能正常完成。
	RunStatusFailed RunStatus = "failed"
)

// Errors for history operations
// 历史操作的错误定义
var (
	// ErrContainerIDEmpty indicates a record without container id.
	ErrContainerIDEmpty = errors.New("history: container id cannot be empty")

	// ErrRunNotFound indicates no matching run exists.
	// ErrRunNotFound 表示不存在匹配的运行记录。
	ErrRunNotFound = errors.New("history: run not found")
)

// ContainerRun is one fork-to-destroy lifetime of a container.
// ContainerRun 是容器从派生到销毁的一次生命周期。
type ContainerRun struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	ContainerID string     `json:"container_id" gorm:"size:512;not null;index"`
	PID         int        `json:"pid" gorm:"not null"`
	Path        string     `json:"path" gorm:"size:1024"`
	Status      RunStatus  `json:"status" gorm:"size:20;not null;index"`
	Recovered   bool       `json:"recovered" gorm:"default:false"`
	ExitStatus  *int       `json:"exit_status"`
	Error       string     `json:"error" gorm:"type:text"`
	ForkedAt    time.Time  `json:"forked_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the ContainerRun model.
// TableName 指定 ContainerRun 模型的表名。
func (ContainerRun) TableName() string {
	return "container_runs"
}

// RunFilter represents filter criteria for querying runs.
// RunFilter 表示查询运行记录的过滤条件。
type RunFilter struct {
	ContainerID string    `json:"container_id"`
	Status      RunStatus `json:"status"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
}
