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

import "errors"

// Common errors for launcher operations
// 启动器操作的常见错误
var (
	// ErrNamespacesUnsupported indicates namespace isolation was requested from
	// a launcher that cannot provide it
	// ErrNamespacesUnsupported 表示向无法提供命名空间隔离的启动器请求了隔离
	ErrNamespacesUnsupported = errors.New("posix launcher does not support namespaces")

	// ErrAlreadyForked indicates the container already has a tracked process
	// ErrAlreadyForked 表示容器已有被跟踪的进程
	ErrAlreadyForked = errors.New("process has already been forked for container")

	// ErrUnknownContainer indicates destroy was called for an untracked container
	// ErrUnknownContainer 表示对未跟踪的容器调用了销毁
	ErrUnknownContainer = errors.New("unknown container")

	// ErrContainerNotFound indicates status was requested for an untracked container
	// ErrContainerNotFound 表示查询了未跟踪容器的状态
	ErrContainerNotFound = errors.New("container does not exist")

	// ErrForkFailed indicates the spawner could not create the child
	// ErrForkFailed 表示无法创建子进程
	ErrForkFailed = errors.New("failed to fork a child process")

	// ErrKillFailed indicates the process tree could not be confirmed dead
	// ErrKillFailed 表示无法确认进程树已终止
	ErrKillFailed = errors.New("failed to kill all processes")

	// ErrDuplicatePID indicates two containers claim the same pid
	// ErrDuplicatePID 表示两个容器声明了同一个 pid
	ErrDuplicatePID = errors.New("detected duplicate pid")

	// ErrInvalidPID indicates a pid that cannot belong to a container
	ErrInvalidPID = errors.New("invalid pid")

	// ErrHierarchyTooDeep indicates a parent chain longer than containerid.MaxDepth
	// ErrHierarchyTooDeep 表示父链长度超过 containerid.MaxDepth
	ErrHierarchyTooDeep = errors.New("container hierarchy too deep")

	// ErrUnsupported indicates the launcher cannot run on this platform
	// ErrUnsupported 表示启动器无法在此平台运行
	ErrUnsupported = errors.New("launcher not supported on this platform")

	// ErrNotImplemented indicates an operation the launcher variant does not provide
	// ErrNotImplemented 表示该启动器变体未提供此操作
	ErrNotImplemented = errors.New("not implemented")
)
