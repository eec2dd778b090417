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

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatunnel/launcher/internal/checkpoint"
	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/metrics"
	"github.com/seatunnel/launcher/internal/process"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubSpawner hands out increasing pids
type stubSpawner struct {
	mu   sync.Mutex
	next int
	last process.SpawnOptions
}

func (s *stubSpawner) Spawn(opts process.SpawnOptions) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = opts
	s.next++
	return s.next, nil
}

type stubKiller struct{}

func (stubKiller) KillTree(pid int, sig syscall.Signal, groups, sessions bool) ([]process.Process, error) {
	return []process.Process{{PID: pid}}, nil
}

// stubReaper reports every pid as exited with status 9 (killed)
type stubReaper struct{}

func (stubReaper) Reap(pid int) <-chan process.ExitResult {
	ch := make(chan process.ExitResult, 1)
	status := 9
	ch <- process.ExitResult{Status: &status}
	close(ch)
	return ch
}

type noLifetime struct{}

func (noLifetime) Enabled() bool      { return false }
func (noLifetime) Hook() process.Hook { return process.Hook{} }

type testEnv struct {
	router  *gin.Engine
	store   *checkpoint.Store
	spawner *stubSpawner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	runtimeDir := t.TempDir()
	spawner := &stubSpawner{next: 1000}
	collector := metrics.NewCollector("test")

	l := launcher.NewPosixLauncher(runtimeDir, launcher.Options{
		Spawner:  spawner,
		Killer:   stubKiller{},
		Reaper:   stubReaper{},
		Lifetime: noLifetime{},
		Recorder: collector,
	})
	store := checkpoint.NewStore(runtimeDir, l.Name(), nil)
	router := NewRouter(NewHandler(l, store, nil), RouterOptions{Metrics: collector.Handler()})
	return &testEnv{router: router, store: store, spawner: spawner}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp Response
	if rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func dataMap(t *testing.T, resp Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "unexpected data %#v", resp.Data)
	return m
}

// TestHealth tests the health endpoint
func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "posix", dataMap(t, resp)["launcher"])
}

// TestForkStatusDestroy tests the full container lifecycle over HTTP
// TestForkStatusDestroy 测试通过 HTTP 的完整容器生命周期
func TestForkStatusDestroy(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/containers", ForkRequest{
		ContainerID: "job-1",
		Path:        "/bin/sleep",
		Argv:        []string{"sleep", "60"},
		Stdout:      "inherit",
		Flags:       map[string]string{"work_dir": "/tmp"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "job-1", dataMap(t, resp)["container_id"])
	assert.Equal(t, float64(1001), dataMap(t, resp)["pid"])
	assert.Equal(t, "inherit", env.spawner.last.Stdout.String())
	assert.Equal(t, "null", env.spawner.last.Stdin.String())
	assert.True(t, env.spawner.last.Setsid)

	states, err := env.store.Scan()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 1001, states[0].PID)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/containers/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1001), dataMap(t, resp)["pid"])

	rec, resp = env.do(t, http.MethodGet, "/api/v1/containers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, resp = env.do(t, http.MethodDelete, "/api/v1/containers/job-1?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, dataMap(t, resp)["completed"])
	assert.Equal(t, float64(9), dataMap(t, resp)["exit_status"])

	rec, resp = env.do(t, http.MethodGet, "/api/v1/containers/job-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, resp.ErrorMsg, "container does not exist")

	rec, resp = env.do(t, http.MethodGet, "/api/v1/containers/job-1/exit_status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(9), dataMap(t, resp)["exit_status"])

	states, err = env.store.Scan()
	require.NoError(t, err)
	assert.Empty(t, states)
}

// TestForkGeneratesID tests that anonymous forks get a uuid
func TestForkGeneratesID(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/containers", ForkRequest{Path: "/bin/true"})
	require.Equal(t, http.StatusCreated, rec.Code)

	id, ok := dataMap(t, resp)["container_id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

// TestForkErrors tests error status codes of the fork endpoint
// TestForkErrors 测试 fork 接口的错误状态码
func TestForkErrors(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/containers", ForkRequest{ContainerID: "a", Path: "/bin/true"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name string
		req  ForkRequest
		code int
	}{
		{"already forked", ForkRequest{ContainerID: "a", Path: "/bin/true"}, http.StatusConflict},
		{"namespaces", ForkRequest{ContainerID: "b", Path: "/bin/true", Namespaces: 1}, http.StatusBadRequest},
		{"invalid id", ForkRequest{ContainerID: "a/b", Path: "/bin/true"}, http.StatusBadRequest},
		{"missing path", ForkRequest{ContainerID: "c"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/v1/containers", tt.req)
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, resp.ErrorMsg)
		})
	}
}

// TestDestroyUnknown tests destroying an untracked container
func TestDestroyUnknown(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodDelete, "/api/v1/containers/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, resp.ErrorMsg, "unknown container")
}

// TestDestroyAsync tests the non-waiting destroy
func TestDestroyAsync(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/api/v1/containers", ForkRequest{ContainerID: "a", Path: "/bin/true"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := env.do(t, http.MethodDelete, "/api/v1/containers/a", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, false, dataMap(t, resp)["completed"])

	id := containerid.MustNew("a")
	require.Eventually(t, func() bool {
		status, err := env.store.ReadExitStatus(id)
		return err == nil && status != nil
	}, time.Second, 5*time.Millisecond)
}

// TestMetricsEndpoint tests that operations show up in /metrics
func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/api/v1/containers", ForkRequest{ContainerID: "a", Path: "/bin/true"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_forks_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "test_tracked_containers 1")
}

// TestStatusCodeForError tests the error mapping
func TestStatusCodeForError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusCodeForError(launcher.ErrUnknownContainer))
	assert.Equal(t, http.StatusNotFound, statusCodeForError(launcher.ErrContainerNotFound))
	assert.Equal(t, http.StatusConflict, statusCodeForError(launcher.ErrAlreadyForked))
	assert.Equal(t, http.StatusNotImplemented, statusCodeForError(launcher.ErrNotImplemented))
	assert.Equal(t, http.StatusInternalServerError, statusCodeForError(launcher.ErrForkFailed))
}
