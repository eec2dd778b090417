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

// Package grpc provides the gRPC launcher service of the agent.
// grpc 包提供 Agent 的 gRPC 启动器服务。
//
// Messages are protobuf well-known types: requests and replies are
// google.protobuf.Struct documents, single ids travel as StringValue.
// 消息使用 protobuf 知名类型：请求和响应为 Struct 文档，单个 id 使用 StringValue。
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
// ServiceName 是完整的 gRPC 服务名
const ServiceName = "seatunnel.launcher.v1.LauncherService"

// Full method names
// 完整方法名
const (
	ForkMethod       = "/" + ServiceName + "/Fork"
	StatusMethod     = "/" + ServiceName + "/Status"
	DestroyMethod    = "/" + ServiceName + "/Destroy"
	ListMethod       = "/" + ServiceName + "/List"
	ExitStatusMethod = "/" + ServiceName + "/ExitStatus"
)

// LauncherServiceServer is the server API of the launcher service.
// LauncherServiceServer 是启动器服务的服务端 API。
type LauncherServiceServer interface {
	// Fork starts a container, see ForkParams for the request fields
	// Fork 启动容器，请求字段见 ForkParams
	Fork(context.Context, *structpb.Struct) (*structpb.Struct, error)

	// Status returns the tracked pid of a container
	// Status 返回容器被跟踪的 pid
	Status(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)

	// Destroy kills a container, optionally waiting until it was reaped
	// Destroy 杀死容器，可选地等待其被回收
	Destroy(context.Context, *structpb.Struct) (*structpb.Struct, error)

	// List returns every tracked container
	// List 返回所有被跟踪的容器
	List(context.Context, *emptypb.Empty) (*structpb.Struct, error)

	// ExitStatus returns the checkpointed exit status of a container
	// ExitStatus 返回容器检查点中的退出状态
	ExitStatus(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// RegisterLauncherServiceServer registers srv on s.
// RegisterLauncherServiceServer 在 s 上注册 srv。
func RegisterLauncherServiceServer(s grpc.ServiceRegistrar, srv LauncherServiceServer) {
	s.RegisterService(&launcherServiceDesc, srv)
}

var launcherServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LauncherServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Fork", newStruct, LauncherServiceServer.Fork),
		unaryMethod("Status", newStringValue, LauncherServiceServer.Status),
		unaryMethod("Destroy", newStruct, LauncherServiceServer.Destroy),
		unaryMethod("List", newEmpty, LauncherServiceServer.List),
		unaryMethod("ExitStatus", newStringValue, LauncherServiceServer.ExitStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seatunnel/launcher/v1/launcher.proto",
}

func newStruct() *structpb.Struct            { return new(structpb.Struct) }
func newStringValue() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newEmpty() *emptypb.Empty                { return new(emptypb.Empty) }

// unaryMethod builds the method descriptor of one unary call: decode the
// request, then run the call through the server's interceptor chain.
// unaryMethod 构建一元调用的方法描述：解码请求后经拦截器链执行调用。
func unaryMethod[Req proto.Message](
	name string,
	newReq func() Req,
	call func(LauncherServiceServer, context.Context, Req) (*structpb.Struct, error),
) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LauncherServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LauncherServiceServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
