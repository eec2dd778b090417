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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo creates a SQLite backed repository for testing
// setupTestRepo 创建用于测试的 SQLite 仓库
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

// TestRecordForkAndDestroy tests a complete run
// TestRecordForkAndDestroy 测试一次完整的运行
func TestRecordForkAndDestroy(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	run, err := repo.RecordFork(ctx, "job.task", 1234, "/bin/worker")
	require.NoError(t, err)
	assert.NotZero(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.False(t, run.Recovered)

	status := 9
	done, err := repo.RecordDestroy(ctx, "job.task", &status, nil)
	require.NoError(t, err)
	assert.Equal(t, run.ID, done.ID)
	assert.Equal(t, RunStatusExited, done.Status)
	require.NotNil(t, done.ExitStatus)
	assert.Equal(t, 9, *done.ExitStatus)
	assert.NotNil(t, done.FinishedAt)

	latest, err := repo.LatestRun(ctx, "job.task")
	require.NoError(t, err)
	assert.Equal(t, RunStatusExited, latest.Status)
	assert.Equal(t, "/bin/worker", latest.Path)

	// Nothing left to close / 没有可关闭的记录
	_, err = repo.RecordDestroy(ctx, "job.task", nil, nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestRecordDestroyFailure tests that a failed destroy keeps the error
func TestRecordDestroyFailure(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.RecordFork(ctx, "c", 10, "/bin/true")
	require.NoError(t, err)

	run, err := repo.RecordDestroy(ctx, "c", nil, errors.New("failed to kill all processes"))
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "failed to kill all processes", run.Error)
	assert.Nil(t, run.ExitStatus)
}

// TestRecordRecovered tests recovery bookkeeping
// TestRecordRecovered 测试恢复记录
func TestRecordRecovered(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	forked, err := repo.RecordFork(ctx, "c", 100, "/bin/sleep")
	require.NoError(t, err)

	// Same pid keeps the open run / 相同 pid 保留原记录
	same, err := repo.RecordRecovered(ctx, "c", 100)
	require.NoError(t, err)
	assert.Equal(t, forked.ID, same.ID)
	assert.False(t, same.Recovered)

	// A different pid supersedes it / 不同 pid 取代原记录
	other, err := repo.RecordRecovered(ctx, "c", 200)
	require.NoError(t, err)
	assert.NotEqual(t, forked.ID, other.ID)
	assert.True(t, other.Recovered)

	runs, total, err := repo.ListRuns(ctx, &RunFilter{ContainerID: "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 2)
	assert.Equal(t, 200, runs[0].PID)
	assert.Equal(t, RunStatusRunning, runs[0].Status)
	assert.Equal(t, RunStatusFailed, runs[1].Status)

	// A container seen for the first time / 首次出现的容器
	fresh, err := repo.RecordRecovered(ctx, "new", 300)
	require.NoError(t, err)
	assert.True(t, fresh.Recovered)
}

// TestEmptyContainerID tests input validation
func TestEmptyContainerID(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.RecordFork(ctx, "", 1, "/bin/true")
	assert.ErrorIs(t, err, ErrContainerIDEmpty)
	_, err = repo.RecordRecovered(ctx, "", 1)
	assert.ErrorIs(t, err, ErrContainerIDEmpty)
	_, err = repo.RecordDestroy(ctx, "", nil, nil)
	assert.ErrorIs(t, err, ErrContainerIDEmpty)

	_, err = repo.LatestRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestListRunsFilters tests filtering and pagination
// TestListRunsFilters 测试过滤和分页
func TestListRunsFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.RecordFork(ctx, fmt.Sprintf("c%d", i), 100+i, "/bin/true")
		require.NoError(t, err)
	}
	_, err := repo.RecordDestroy(ctx, "c0", nil, nil)
	require.NoError(t, err)

	runs, total, err := repo.ListRuns(ctx, &RunFilter{Status: RunStatusRunning})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, runs, 4)

	runs, total, err = repo.ListRuns(ctx, &RunFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, runs, 2)
	assert.Equal(t, "c2", runs[0].ContainerID)
	assert.Equal(t, "c1", runs[1].ContainerID)

	runs, _, err = repo.ListRuns(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

// **Feature: container-launcher, Property 7: One Open Run Per Container**
//
// For any sequence of forks, recoveries and destroys of one container, at
// most one run of that container is open.
// 对于同一容器的任意派生、恢复和销毁序列，最多只有一条未结束的运行记录。
func TestProperty_OneOpenRunPerContainer(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("at most one running run", prop.ForAll(
		func(ops []int) bool {
			repo := setupTestRepo(t)
			ctx := context.Background()

			for i, op := range ops {
				switch op {
				case 0:
					// Forks only happen when nothing is tracked
					open, _, _ := repo.ListRuns(ctx, &RunFilter{ContainerID: "c", Status: RunStatusRunning})
					if len(open) == 0 {
						if _, err := repo.RecordFork(ctx, "c", 1000+i, "/bin/true"); err != nil {
							return false
						}
					}
				case 1:
					if _, err := repo.RecordRecovered(ctx, "c", 2000+i); err != nil {
						return false
					}
				default:
					_, err := repo.RecordDestroy(ctx, "c", nil, nil)
					if err != nil && !errors.Is(err, ErrRunNotFound) {
						return false
					}
				}
			}

			_, open, err := repo.ListRuns(ctx, &RunFilter{ContainerID: "c", Status: RunStatusRunning})
			return err == nil && open <= 1
		},
		gen.SliceOfN(12, gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
