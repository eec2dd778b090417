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
	"fmt"
	"path/filepath"

	"github.com/seatunnel/launcher/internal/containerid"
)

const (
	// ContainersPrefix is the directory level inserted before each hierarchy level
	// ContainersPrefix 是每个层级前插入的目录名
	ContainersPrefix = "containers"

	// ExitStatusFile is the name of the exit status checkpoint
	ExitStatusFile = "exit_status"

	// launcherDir is the directory under the runtime dir owned by launchers
	launcherDir = "launcher"
)

// BuildPathFromHierarchy threads prefix through every level of the id's
// ancestry, outermost first. With prefix "containers", "child" nested in
// "root" yields "containers/root/containers/child".
// BuildPathFromHierarchy 将 prefix 插入 id 祖先链的每一层，最外层在前。
func BuildPathFromHierarchy(id *containerid.ID, prefix string) (string, error) {
	if id == nil {
		return "", fmt.Errorf("%w: nil", containerid.ErrInvalid)
	}
	if id.Depth() > containerid.MaxDepth {
		return "", fmt.Errorf("%w: more than %d levels", ErrHierarchyTooDeep, containerid.MaxDepth)
	}
	// Values become directory names and must not escape prefix.
	if err := id.Validate(); err != nil {
		return "", err
	}

	path := filepath.Join(prefix, id.Value)
	for cur := id; cur.Parent != nil; cur = cur.Parent {
		path = filepath.Join(prefix, cur.Parent.Value, path)
	}
	return path, nil
}

// CheckpointDir returns the per-container directory of a launcher variant:
// <runtimeDir>/launcher/<variant>/<hierarchy path>.
// CheckpointDir 返回启动器变体下每个容器的目录。
func CheckpointDir(runtimeDir, variant string, id *containerid.ID) (string, error) {
	path, err := BuildPathFromHierarchy(id, ContainersPrefix)
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, launcherDir, variant, path), nil
}

// VariantDir returns the directory holding all checkpoints of a launcher variant.
func VariantDir(runtimeDir, variant string) string {
	return filepath.Join(runtimeDir, launcherDir, variant)
}

// ExitStatusCheckpointPath returns where the exit status of a container is
// checkpointed.
// ExitStatusCheckpointPath 返回容器退出状态检查点文件的路径。
func ExitStatusCheckpointPath(runtimeDir, variant string, id *containerid.ID) (string, error) {
	dir, err := CheckpointDir(runtimeDir, variant, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ExitStatusFile), nil
}
