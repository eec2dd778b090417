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

package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the launcher service of a running agent.
// Client 调用运行中 Agent 的启动器服务。
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client for target. Without options the connection is
// plaintext.
// NewClient 为 target 创建客户端。未提供选项时使用明文连接。
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.conn.Close()
}

// Fork starts a container and returns its id and pid.
// Fork 启动容器并返回其 id 和 pid。
func (c *Client) Fork(ctx context.Context, params ForkParams) (ContainerInfo, error) {
	req, err := params.toStruct()
	if err != nil {
		return ContainerInfo{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ForkMethod, req, resp); err != nil {
		return ContainerInfo{}, err
	}
	return containerInfoFromFields(resp.GetFields())
}

// Status returns the tracked pid of a container.
// Status 返回容器被跟踪的 pid。
func (c *Client) Status(ctx context.Context, containerID string) (ContainerInfo, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, StatusMethod, wrapperspb.String(containerID), resp); err != nil {
		return ContainerInfo{}, err
	}
	return containerInfoFromFields(resp.GetFields())
}

// Destroy kills a container. With wait the call returns once it was reaped.
// Destroy 杀死容器。wait 为 true 时在回收后返回。
func (c *Client) Destroy(ctx context.Context, containerID string, wait bool) (DestroyResult, error) {
	req, err := structpb.NewStruct(map[string]any{"container_id": containerID, "wait": wait})
	if err != nil {
		return DestroyResult{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, DestroyMethod, req, resp); err != nil {
		return DestroyResult{}, err
	}
	return destroyResultFromStruct(resp)
}

// List returns every tracked container.
// List 返回所有被跟踪的容器。
func (c *Client) List(ctx context.Context) ([]ContainerInfo, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ListMethod, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	return containerListFromStruct(resp)
}

// ExitStatus returns the checkpointed raw wait status of a container.
// ExitStatus 返回容器检查点中的原始等待状态。
func (c *Client) ExitStatus(ctx context.Context, containerID string) (int, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ExitStatusMethod, wrapperspb.String(containerID), resp); err != nil {
		return 0, err
	}
	return intField(resp.GetFields(), "exit_status")
}

// Healthy reports whether the launcher service is serving.
// Healthy 报告启动器服务是否正在提供服务。
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING, nil
}
