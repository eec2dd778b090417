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
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/containerid"
)

// TestCreate tests launcher construction from configuration
// TestCreate 测试根据配置构建启动器
func TestCreate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix launcher is not available on windows")
	}

	cfg := config.Default()
	cfg.Launcher.RuntimeDir = "/tmp/launcher-test"

	l, err := Create(cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, "posix", l.Name())
	assert.IsType(t, &PosixLauncher{}, l)

	path, err := l.ExitStatusCheckpointPath(containerid.MustNew("c"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/launcher-test/launcher/posix/containers/c/exit_status", path)
}

// TestCreateHostVariant tests that an empty name selects the host variant
func TestCreateHostVariant(t *testing.T) {
	cfg := config.Default()
	cfg.Launcher.Name = ""

	l, err := Create(cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, HostVariant(), l.Name())
}

// TestCreateUnknown tests that unknown variants are rejected
func TestCreateUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Launcher.Name = "plan9"

	_, err := Create(cfg, Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

// TestWindowsLauncher tests the placeholder variant
// TestWindowsLauncher 测试占位变体
func TestWindowsLauncher(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Launcher.Name = config.LauncherWindows
	cfg.Launcher.RuntimeDir = "/tmp/launcher-test"

	l, err := Create(cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, "windows", l.Name())

	id := containerid.MustNew("c")
	_, err = l.Recover(ctx, nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = l.Fork(ctx, id, ForkRequest{Path: "cmd.exe"})
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = l.Status(ctx, id)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.ErrorIs(t, l.Destroy(ctx, id).Wait(ctx), ErrNotImplemented)
	assert.Empty(t, l.Containers(ctx))

	path, err := l.ExitStatusCheckpointPath(id)
	require.NoError(t, err)
	assert.Contains(t, path, "windows")
}
