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

package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Default pagination values
// 默认分页值
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Repository provides data access operations for ContainerRun entities.
// Repository 提供 ContainerRun 实体的数据访问操作。
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository instance.
// NewRepository 创建一个新的 Repository 实例。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the history tables.
// Migrate 创建或更新历史表。
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ContainerRun{})
}

// RecordFork opens a run for a freshly forked container.
// RecordFork 为新派生的容器创建运行记录。
func (r *Repository) RecordFork(ctx context.Context, containerID string, pid int, path string) (*ContainerRun, error) {
	if containerID == "" {
		return nil, ErrContainerIDEmpty
	}
	run := &ContainerRun{
		ContainerID: containerID,
		PID:         pid,
		Path:        path,
		Status:      RunStatusRunning,
		ForkedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// RecordRecovered makes sure a recovered container has an open run. An open
// run with the same pid is kept, any other open run of the container is
// closed as failed first.
// RecordRecovered 确保恢复的容器存在未结束的运行记录。
func (r *Repository) RecordRecovered(ctx context.Context, containerID string, pid int) (*ContainerRun, error) {
	if containerID == "" {
		return nil, ErrContainerIDEmpty
	}

	var run *ContainerRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := latestOpen(tx, containerID)
		if err != nil && !errors.Is(err, ErrRunNotFound) {
			return err
		}
		if open != nil && open.PID == pid {
			run = open
			return nil
		}
		if open != nil {
			now := time.Now()
			if err := tx.Model(open).Updates(map[string]any{
				"status":      RunStatusFailed,
				"error":       "superseded by recovered pid",
				"finished_at": &now,
			}).Error; err != nil {
				return err
			}
		}

		run = &ContainerRun{
			ContainerID: containerID,
			PID:         pid,
			Status:      RunStatusRunning,
			Recovered:   true,
			ForkedAt:    time.Now(),
		}
		return tx.Create(run).Error
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RecordDestroy closes the open run of a container. A nil destroyErr marks
// the run exited with exitStatus.
// RecordDestroy 关闭容器未结束的运行记录。
func (r *Repository) RecordDestroy(ctx context.Context, containerID string, exitStatus *int, destroyErr error) (*ContainerRun, error) {
	if containerID == "" {
		return nil, ErrContainerIDEmpty
	}

	var run *ContainerRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := latestOpen(tx, containerID)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{
			"status":      RunStatusExited,
			"exit_status": exitStatus,
			"finished_at": &now,
		}
		if destroyErr != nil {
			updates["status"] = RunStatusFailed
			updates["error"] = destroyErr.Error()
		}
		if err := tx.Model(open).Updates(updates).Error; err != nil {
			return err
		}

		var updated ContainerRun
		if err := tx.First(&updated, open.ID).Error; err != nil {
			return err
		}
		run = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun returns the most recent run of a container.
// LatestRun 返回容器最近的一次运行记录。
func (r *Repository) LatestRun(ctx context.Context, containerID string) (*ContainerRun, error) {
	var run ContainerRun
	err := r.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves runs based on filter criteria with pagination, newest
// first. Returns the page and the total count.
// ListRuns 根据过滤条件分页获取运行记录，最新的在前。返回记录和总数。
func (r *Repository) ListRuns(ctx context.Context, filter *RunFilter) ([]*ContainerRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&ContainerRun{})

	// Apply filters - 应用过滤条件
	page, pageSize := 1, DefaultPageSize
	if filter != nil {
		if filter.ContainerID != "" {
			query = query.Where("container_id = ?", filter.ContainerID)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PageSize > 0 {
			pageSize = filter.PageSize
		}
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	// Get total count - 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []*ContainerRun
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// latestOpen returns the newest running run of a container
func latestOpen(tx *gorm.DB, containerID string) (*ContainerRun, error) {
	var run ContainerRun
	err := tx.Where("container_id = ? AND status = ?", containerID, RunStatusRunning).
		Order("id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}
