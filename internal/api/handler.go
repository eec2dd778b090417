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

// Package api provides the HTTP admin surface of the launcher agent.
// api 包提供启动器 Agent 的 HTTP 管理接口。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seatunnel/launcher/internal/checkpoint"
	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/history"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/process"
)

// Handler provides HTTP handlers over a Launcher.
// Handler 提供基于 Launcher 的 HTTP 处理器。
type Handler struct {
	launcher launcher.Launcher
	store    *checkpoint.Store
	history  *history.Repository
	logger   *zap.Logger
}

// HandlerOption customizes a Handler
type HandlerOption func(*Handler)

// WithHistory serves the container run history from repo.
// WithHistory 从 repo 提供容器运行历史。
func WithHistory(repo *history.Repository) HandlerOption {
	return func(h *Handler) {
		h.history = repo
	}
}

// NewHandler creates a new Handler instance. store may be nil to disable
// checkpointing.
// NewHandler 创建一个新的 Handler 实例，store 为 nil 时禁用检查点。
func NewHandler(l launcher.Launcher, store *checkpoint.Store, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{launcher: l, store: store, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ==================== Request/Response Types 请求/响应类型 ====================

// ForkRequest is the body of POST /api/v1/containers.
// Streams are "null" (default), "inherit" or a file path.
// ForkRequest 是 POST /api/v1/containers 的请求体。
type ForkRequest struct {
	ContainerID string            `json:"container_id"`
	Path        string            `json:"path" binding:"required"`
	Argv        []string          `json:"argv"`
	Stdin       string            `json:"stdin"`
	Stdout      string            `json:"stdout"`
	Stderr      string            `json:"stderr"`
	Flags       map[string]string `json:"flags"`
	Environment map[string]string `json:"environment"`
	Namespaces  int               `json:"namespaces"`
}

// ContainerInfo describes a tracked container
// ContainerInfo 描述一个被跟踪的容器
type ContainerInfo struct {
	ContainerID string `json:"container_id"`
	PID         int    `json:"pid"`
}

// DestroyResult describes a finished destroy
// DestroyResult 描述已完成的销毁
type DestroyResult struct {
	ContainerID string `json:"container_id"`
	Completed   bool   `json:"completed"`
	ExitStatus  *int   `json:"exit_status,omitempty"`
}

// Response is the envelope of every endpoint
// Response 是所有接口的响应包装
type Response struct {
	ErrorMsg string `json:"error_msg"`
	Data     any    `json:"data"`
}

// ==================== Handlers 处理器 ====================

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Data: gin.H{"status": "ok", "launcher": h.launcher.Name()}})
}

// ListContainers handles GET /api/v1/containers - lists tracked containers.
// ListContainers 处理 GET /api/v1/containers - 列出被跟踪的容器。
func (h *Handler) ListContainers(c *gin.Context) {
	states := h.launcher.Containers(c.Request.Context())
	infos := make([]ContainerInfo, 0, len(states))
	for _, s := range states {
		infos = append(infos, ContainerInfo{ContainerID: s.ContainerID.String(), PID: s.PID})
	}
	c.JSON(http.StatusOK, Response{Data: infos})
}

// GetContainer handles GET /api/v1/containers/:id - returns the container status.
// GetContainer 处理 GET /api/v1/containers/:id - 返回容器状态。
func (h *Handler) GetContainer(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	status, err := h.launcher.Status(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusCodeForError(err), Response{ErrorMsg: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Data: ContainerInfo{ContainerID: status.ContainerID, PID: status.ExecutorPID}})
}

// ForkContainer handles POST /api/v1/containers - forks a container.
// A missing container_id gets a generated one.
// ForkContainer 处理 POST /api/v1/containers - 派生容器。未提供 container_id 时自动生成。
func (h *Handler) ForkContainer(c *gin.Context) {
	var req ForkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{ErrorMsg: err.Error()})
		return
	}
	if req.ContainerID == "" {
		req.ContainerID = uuid.NewString()
	}

	id, err := containerid.Parse(req.ContainerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{ErrorMsg: err.Error()})
		return
	}

	pid, err := h.launcher.Fork(c.Request.Context(), id, launcher.ForkRequest{
		Path:        req.Path,
		Argv:        req.Argv,
		Stdin:       process.ParseIO(req.Stdin),
		Stdout:      process.ParseIO(req.Stdout),
		Stderr:      process.ParseIO(req.Stderr),
		Flags:       req.Flags,
		Environment: req.Environment,
		Namespaces:  req.Namespaces,
	})
	if err != nil {
		c.JSON(statusCodeForError(err), Response{ErrorMsg: err.Error()})
		return
	}

	if h.store != nil {
		if err := h.store.Checkpoint(id, pid); err != nil {
			h.logger.Error("Failed to checkpoint container",
				zap.String("container_id", id.String()), zap.Int("pid", pid), zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, Response{Data: ContainerInfo{ContainerID: id.String(), PID: pid}})
}

// DestroyContainer handles DELETE /api/v1/containers/:id - destroys a container.
// With ?wait=true the response is sent once the process was reaped,
// otherwise 202 is returned right after the kill.
// DestroyContainer 处理 DELETE /api/v1/containers/:id - 销毁容器。
func (h *Handler) DestroyContainer(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	completion := h.launcher.Destroy(c.Request.Context(), id)

	// Unknown containers resolve immediately / 未知容器立即完成
	select {
	case <-completion.Done():
		if err := completion.Err(); err != nil && !errors.Is(err, launcher.ErrKillFailed) {
			c.JSON(statusCodeForError(err), Response{ErrorMsg: err.Error()})
			return
		}
	default:
	}

	if !strings.EqualFold(c.Query("wait"), "true") {
		go h.finalize(id, completion)
		c.JSON(http.StatusAccepted, Response{Data: DestroyResult{ContainerID: id.String()}})
		return
	}

	if err := completion.Wait(c.Request.Context()); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			go h.finalize(id, completion)
		} else {
			h.finalize(id, completion)
		}
		c.JSON(statusCodeForError(err), Response{ErrorMsg: err.Error()})
		return
	}
	h.finalize(id, completion)
	c.JSON(http.StatusOK, Response{Data: DestroyResult{
		ContainerID: id.String(),
		Completed:   true,
		ExitStatus:  completion.ExitStatus(),
	}})
}

// GetExitStatus handles GET /api/v1/containers/:id/exit_status.
// GetExitStatus 处理 GET /api/v1/containers/:id/exit_status。
func (h *Handler) GetExitStatus(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, Response{ErrorMsg: "checkpointing is disabled"})
		return
	}

	status, err := h.store.ReadExitStatus(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{ErrorMsg: err.Error()})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, Response{ErrorMsg: "no exit status recorded for container " + id.String()})
		return
	}
	c.JSON(http.StatusOK, Response{Data: gin.H{"container_id": id.String(), "exit_status": *status}})
}

// GetHistory handles GET /api/v1/containers/:id/history - lists the runs of
// a container, newest first. Supports page, page_size and status.
// GetHistory 处理 GET /api/v1/containers/:id/history - 列出容器的运行记录。
func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, Response{ErrorMsg: "history is disabled"})
		return
	}

	filter := &history.RunFilter{
		ContainerID: id.String(),
		Status:      history.RunStatus(c.Query("status")),
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	runs, total, err := h.history.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list container runs", zap.String("container_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{ErrorMsg: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Data: gin.H{"total": total, "runs": runs}})
}

// finalize waits for the destroy and updates the checkpoints
func (h *Handler) finalize(id *containerid.ID, completion *launcher.Completion) {
	<-completion.Done()
	if h.store == nil || completion.Err() != nil {
		return
	}
	if err := h.store.Finalize(id, completion.ExitStatus()); err != nil {
		h.logger.Warn("Failed to finalize checkpoint", zap.String("container_id", id.String()), zap.Error(err))
	}
}

func (h *Handler) parseID(c *gin.Context) (*containerid.ID, bool) {
	id, err := containerid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{ErrorMsg: err.Error()})
		return nil, false
	}
	return id, true
}

// statusCodeForError maps launcher errors to HTTP status codes
// statusCodeForError 将启动器错误映射为 HTTP 状态码
func statusCodeForError(err error) int {
	switch {
	case errors.Is(err, launcher.ErrUnknownContainer), errors.Is(err, launcher.ErrContainerNotFound):
		return http.StatusNotFound
	case errors.Is(err, launcher.ErrAlreadyForked):
		return http.StatusConflict
	case errors.Is(err, launcher.ErrNamespacesUnsupported), errors.Is(err, containerid.ErrInvalid),
		errors.Is(err, launcher.ErrHierarchyTooDeep):
		return http.StatusBadRequest
	case errors.Is(err, launcher.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
