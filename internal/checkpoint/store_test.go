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

package checkpoint

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/seatunnel/launcher/internal/containerid"
)

// TestCheckpointAndScan tests that checkpointed containers are found again
// TestCheckpointAndScan 测试检查点中的容器能被重新发现
func TestCheckpointAndScan(t *testing.T) {
	store := NewStore(t.TempDir(), "posix", nil)

	root := containerid.MustNew("root")
	child, err := root.Child("child")
	require.NoError(t, err)

	require.NoError(t, store.Checkpoint(root, 100))
	require.NoError(t, store.Checkpoint(child, 200))

	states, err := store.Scan()
	require.NoError(t, err)
	require.Len(t, states, 2)

	sort.Slice(states, func(i, j int) bool { return states[i].PID < states[j].PID })
	assert.Equal(t, "root", states[0].ContainerID.String())
	assert.Equal(t, 100, states[0].PID)
	assert.Equal(t, "root.child", states[1].ContainerID.String())
	assert.Equal(t, 200, states[1].PID)

	// The nested layout mirrors the hierarchy / 嵌套布局与层级一致
	_, err = os.Stat(filepath.Join(store.Dir(), "containers", "root", "containers", "child", StateFile))
	assert.NoError(t, err)
}

// TestScanMissingDir tests scanning before anything was checkpointed
func TestScanMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"), "posix", nil)

	states, err := store.Scan()
	require.NoError(t, err)
	assert.Empty(t, states)
}

// TestRemove tests that removed containers are not recovered
// TestRemove 测试被删除的容器不会被恢复
func TestRemove(t *testing.T) {
	store := NewStore(t.TempDir(), "posix", nil)
	id := containerid.MustNew("a")

	require.NoError(t, store.Checkpoint(id, 100))
	require.NoError(t, store.WriteExitStatus(id, 0))
	require.NoError(t, store.Remove(id))
	require.NoError(t, store.Remove(id))

	states, err := store.Scan()
	require.NoError(t, err)
	assert.Empty(t, states)

	status, err := store.ReadExitStatus(id)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 0, *status)
}

// TestFinalize tests recording the end of a destroyed container
// TestFinalize 测试记录已销毁容器的结束
func TestFinalize(t *testing.T) {
	store := NewStore(t.TempDir(), "posix", nil)
	known := containerid.MustNew("known")
	unknown := containerid.MustNew("unknown")

	require.NoError(t, store.Checkpoint(known, 100))
	require.NoError(t, store.Checkpoint(unknown, 200))

	exit := 9
	require.NoError(t, store.Finalize(known, &exit))
	require.NoError(t, store.Finalize(unknown, nil))

	states, err := store.Scan()
	require.NoError(t, err)
	assert.Empty(t, states)

	status, err := store.ReadExitStatus(known)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 9, *status)

	status, err = store.ReadExitStatus(unknown)
	require.NoError(t, err)
	assert.Nil(t, status)
}

// TestExitStatus tests writing and reading the exit status
// TestExitStatus 测试退出状态的读写
func TestExitStatus(t *testing.T) {
	store := NewStore(t.TempDir(), "posix", nil)
	id := containerid.MustNew("a")

	status, err := store.ReadExitStatus(id)
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, store.WriteExitStatus(id, 256))
	status, err = store.ReadExitStatus(id)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 256, *status)

	// A new checkpoint clears the previous run's status / 新检查点清除上次运行的状态
	require.NoError(t, store.Checkpoint(id, 300))
	status, err = store.ReadExitStatus(id)
	require.NoError(t, err)
	assert.Nil(t, status)
}

// TestCorruptCheckpoints tests that unreadable state fails the scan
func TestCorruptCheckpoints(t *testing.T) {
	tests := []struct {
		name    string
		dir     []string
		content string
	}{
		{"invalid yaml", []string{"containers", "a"}, "container_id: [a"},
		{"invalid id", []string{"containers", "a"}, "container_id: \"\"\npid: 1\n"},
		{"misplaced", []string{"containers", "b"}, "container_id: a\npid: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(t.TempDir(), "posix", nil)
			dir := filepath.Join(append([]string{store.Dir()}, tt.dir...)...)
			require.NoError(t, os.MkdirAll(dir, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte(tt.content), 0644))

			_, err := store.Scan()
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

// TestCorruptExitStatus tests a non-numeric exit status
func TestCorruptExitStatus(t *testing.T) {
	store := NewStore(t.TempDir(), "posix", nil)
	id := containerid.MustNew("a")
	require.NoError(t, store.WriteExitStatus(id, 1))

	dir := filepath.Join(store.Dir(), "containers", "a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exit_status"), []byte("x"), 0644))

	_, err := store.ReadExitStatus(id)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// TestStateFileFormat tests the on-disk YAML form
func TestStateFileFormat(t *testing.T) {
	store := NewStore(t.TempDir(), "posix", nil)
	id, err := containerid.Parse("a.b")
	require.NoError(t, err)
	require.NoError(t, store.Checkpoint(id, 42))

	data, err := os.ReadFile(filepath.Join(store.Dir(), "containers", "a", "containers", "b", StateFile))
	require.NoError(t, err)

	var state State
	require.NoError(t, yaml.Unmarshal(data, &state))
	assert.Equal(t, "a.b", state.ContainerID)
	assert.Equal(t, 42, state.PID)
	assert.False(t, state.ForkedAt.IsZero())
}
