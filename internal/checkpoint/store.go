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

// Package checkpoint persists per-container launcher state under the runtime
// directory so the registry can be recovered after an agent restart.
// checkpoint 包在运行时目录下持久化每个容器的启动器状态，以便 Agent 重启后恢复注册表。
//
// Layout / 目录结构:
//
//	<runtime_dir>/launcher/<variant>/containers/<id>/state.yaml
//	<runtime_dir>/launcher/<variant>/containers/<id>/exit_status
//	<runtime_dir>/launcher/<variant>/containers/<id>/containers/<child>/...
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/launcher"
)

// StateFile is the name of the per-container state checkpoint
const StateFile = "state.yaml"

// ErrCorrupt indicates a checkpoint file that cannot be parsed
// ErrCorrupt 表示无法解析的检查点文件
var ErrCorrupt = errors.New("corrupt checkpoint")

// State is the content of state.yaml
// State 是 state.yaml 的内容
type State struct {
	ContainerID string    `yaml:"container_id"`
	PID         int       `yaml:"pid"`
	ForkedAt    time.Time `yaml:"forked_at"`
}

// Store reads and writes the checkpoints of one launcher variant
// Store 读写一个启动器变体的检查点
type Store struct {
	runtimeDir string
	variant    string
	logger     *zap.Logger
}

// NewStore creates a Store rooted at runtimeDir for the given variant
// NewStore 为给定变体创建以 runtimeDir 为根的 Store
func NewStore(runtimeDir, variant string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{runtimeDir: runtimeDir, variant: variant, logger: logger}
}

// Dir returns the directory holding all checkpoints of the variant
func (s *Store) Dir() string {
	return launcher.VariantDir(s.runtimeDir, s.variant)
}

// Checkpoint records that id runs as pid.
// Checkpoint 记录 id 以 pid 运行。
func (s *Store) Checkpoint(id *containerid.ID, pid int) error {
	dir, err := launcher.CheckpointDir(s.runtimeDir, s.variant, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	data, err := yaml.Marshal(&State{ContainerID: id.String(), PID: pid, ForkedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, StateFile), data); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	// A stale exit status from an earlier run must not be read for this one.
	if err := os.Remove(filepath.Join(dir, launcher.ExitStatusFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear exit status: %w", err)
	}
	return nil
}

// Remove drops the state checkpoint of id so it is not recovered again. The
// exit status file is kept for readers.
// Remove 删除 id 的状态检查点以免再次恢复，退出状态文件保留。
func (s *Store) Remove(id *containerid.ID) error {
	dir, err := launcher.CheckpointDir(s.runtimeDir, s.variant, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, StateFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

// Finalize records the end of a destroyed container: the exit status, when
// known, is written and the state checkpoint removed.
// Finalize 记录已销毁容器的结束：写入已知的退出状态并删除状态检查点。
func (s *Store) Finalize(id *containerid.ID, exitStatus *int) error {
	if exitStatus != nil {
		if err := s.WriteExitStatus(id, *exitStatus); err != nil {
			return err
		}
	}
	if err := s.Remove(id); err != nil {
		return err
	}
	s.logger.Debug("Finalized container checkpoint",
		zap.String("container_id", id.String()),
		zap.Bool("exit_status_known", exitStatus != nil))
	return nil
}

// WriteExitStatus stores the raw wait status of id.
// WriteExitStatus 保存 id 的原始等待状态。
func (s *Store) WriteExitStatus(id *containerid.ID, status int) error {
	path, err := launcher.ExitStatusCheckpointPath(s.runtimeDir, s.variant, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	if err := writeFileAtomic(path, []byte(strconv.Itoa(status))); err != nil {
		return fmt.Errorf("failed to write exit status: %w", err)
	}
	return nil
}

// ReadExitStatus returns the stored wait status of id, nil when none was written.
// ReadExitStatus 返回 id 保存的等待状态，未写入时为 nil。
func (s *Store) ReadExitStatus(id *containerid.ID) (*int, error) {
	path, err := launcher.ExitStatusCheckpointPath(s.runtimeDir, s.variant, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read exit status: %w", err)
	}
	status, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return &status, nil
}

// Scan walks the variant directory and returns every checkpointed container,
// ready to be passed to Launcher.Recover. A missing directory yields nothing.
// Corrupt or misplaced state files fail the scan.
// Scan 遍历变体目录并返回所有检查点中的容器，可直接传给 Launcher.Recover。
func (s *Store) Scan() ([]launcher.ContainerState, error) {
	root := s.Dir()
	var states []launcher.ContainerState

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || d.Name() != StateFile {
			return nil
		}

		state, err := s.load(path)
		if err != nil {
			return err
		}
		states = append(states, state)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoints: %w", err)
	}

	s.logger.Debug("Scanned checkpoints", zap.String("dir", root), zap.Int("containers", len(states)))
	return states, nil
}

// load parses one state file and checks it lives where its id says it should
func (s *Store) load(path string) (launcher.ContainerState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return launcher.ContainerState{}, err
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return launcher.ContainerState{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	id, err := containerid.Parse(state.ContainerID)
	if err != nil {
		return launcher.ContainerState{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	want, err := launcher.CheckpointDir(s.runtimeDir, s.variant, id)
	if err != nil {
		return launcher.ContainerState{}, err
	}
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(want) {
		return launcher.ContainerState{}, fmt.Errorf("%w: %s does not belong to container %s", ErrCorrupt, path, id)
	}
	return launcher.ContainerState{ContainerID: id, PID: state.PID}, nil
}

// writeFileAtomic replaces path through a temporary file and a rename
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
