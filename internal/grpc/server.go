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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/seatunnel/launcher/internal/checkpoint"
	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/process"
)

// Default configuration values for the gRPC server
// gRPC 服务器的默认配置值
const (
	// DefaultMaxRecvMsgSize is the default maximum receive message size (4MB).
	// DefaultMaxRecvMsgSize 是默认的最大接收消息大小（4MB）。
	DefaultMaxRecvMsgSize = 4 * 1024 * 1024

	// DefaultMaxSendMsgSize is the default maximum send message size (4MB).
	// DefaultMaxSendMsgSize 是默认的最大发送消息大小（4MB）。
	DefaultMaxSendMsgSize = 4 * 1024 * 1024
)

// Errors for gRPC server operations
// gRPC 服务器操作的错误定义
var (
	// ErrServerAlreadyRunning indicates the server is already running.
	// ErrServerAlreadyRunning 表示服务器已在运行。
	ErrServerAlreadyRunning = errors.New("grpc: server is already running")

	// ErrInvalidTLSConfig indicates invalid TLS configuration.
	// ErrInvalidTLSConfig 表示无效的 TLS 配置。
	ErrInvalidTLSConfig = errors.New("grpc: invalid TLS configuration")
)

// ServerConfig holds configuration for the gRPC server.
// ServerConfig 保存 gRPC 服务器的配置。
type ServerConfig struct {
	// Address is the listen address (host:port)
	// Address 是监听地址（host:port）
	Address string

	// CertFile and KeyFile enable TLS when set
	// CertFile 和 KeyFile 设置后启用 TLS
	CertFile string
	KeyFile  string

	// CAFile is the path to the CA certificate file for client verification.
	// CAFile 是用于客户端验证的 CA 证书文件路径。
	CAFile string

	// MaxRecvMsgSize is the maximum receive message size in bytes.
	// MaxRecvMsgSize 是最大接收消息大小（字节）。
	MaxRecvMsgSize int

	// MaxSendMsgSize is the maximum send message size in bytes.
	// MaxSendMsgSize 是最大发送消息大小（字节）。
	MaxSendMsgSize int
}

// Server serves the launcher service and the standard health service.
// Server 提供启动器服务和标准健康检查服务。
type Server struct {
	config *ServerConfig

	// launcher owns the container registry
	// launcher 持有容器注册表
	launcher launcher.Launcher

	// store persists checkpoints, nil disables checkpointing
	// store 持久化检查点，为 nil 时禁用
	store *checkpoint.Store

	logger *zap.Logger

	mu         sync.Mutex
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	running    bool
}

// NewServer creates a new gRPC server instance.
// NewServer 创建一个新的 gRPC 服务器实例。
func NewServer(config *ServerConfig, l launcher.Launcher, store *checkpoint.Store, logger *zap.Logger) *Server {
	if config == nil {
		config = &ServerConfig{}
	}

	// Set default values
	// 设置默认值
	if config.MaxRecvMsgSize <= 0 {
		config.MaxRecvMsgSize = DefaultMaxRecvMsgSize
	}
	if config.MaxSendMsgSize <= 0 {
		config.MaxSendMsgSize = DefaultMaxSendMsgSize
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		config:   config,
		launcher: l,
		store:    store,
		logger:   logger,
	}
}

// Start listens on the configured address and serves in the background.
// Start 监听配置的地址并在后台提供服务。
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	if err := s.Serve(listener); err != nil {
		listener.Close()
		return err
	}
	return nil
}

// Serve serves on an existing listener in the background.
// Serve 在已有的监听器上后台提供服务。
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	// Build server options
	// 构建服务器选项
	opts, err := s.buildServerOptions()
	if err != nil {
		return fmt.Errorf("failed to build server options: %w", err)
	}

	s.grpcServer = grpc.NewServer(opts...)
	RegisterLauncherServiceServer(s.grpcServer, s)

	// Register health check service
	// 注册健康检查服务
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s.listener = listener
	s.running = true
	s.logger.Info("gRPC server starting",
		zap.String("address", listener.Addr().String()),
		zap.Bool("tls_enabled", s.config.CertFile != ""),
	)

	// Start serving in a goroutine
	// 在 goroutine 中启动服务
	grpcServer := s.grpcServer
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			s.logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the gRPC server.
// Stop 优雅地停止 gRPC 服务器。
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Info("Stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	s.running = false
	s.logger.Info("gRPC server stopped")
}

// IsRunning returns whether the server is running.
// IsRunning 返回服务器是否正在运行。
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// buildServerOptions builds gRPC server options based on configuration.
// buildServerOptions 根据配置构建 gRPC 服务器选项。
func (s *Server) buildServerOptions() ([]grpc.ServerOption, error) {
	var opts []grpc.ServerOption

	// Add message size options
	// 添加消息大小选项
	opts = append(opts,
		grpc.MaxRecvMsgSize(s.config.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(s.config.MaxSendMsgSize),
	)

	// Add keepalive options
	// 添加 keepalive 选项
	opts = append(opts,
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	// Add TLS credentials if enabled
	// 如果启用则添加 TLS 凭证
	if s.config.CertFile != "" {
		creds, err := s.loadTLSCredentials()
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	// Add interceptors
	// 添加拦截器
	opts = append(opts, grpc.ChainUnaryInterceptor(
		s.loggingUnaryInterceptor,
		s.recoveryUnaryInterceptor,
	))

	return opts, nil
}

// loadTLSCredentials loads TLS credentials from files.
// loadTLSCredentials 从文件加载 TLS 凭证。
func (s *Server) loadTLSCredentials() (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	// Load CA certificate for client verification if provided
	// 如果提供了 CA 证书则加载用于客户端验证
	if s.config.CAFile != "" {
		caCert, err := os.ReadFile(s.config.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, ErrInvalidTLSConfig
		}

		tlsConfig.ClientCAs = caCertPool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return credentials.NewTLS(tlsConfig), nil
}

// loggingUnaryInterceptor logs unary RPC calls.
// loggingUnaryInterceptor 记录一元 RPC 调用。
func (s *Server) loggingUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	peerAddr := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		peerAddr = p.Addr.String()
	}

	resp, err := handler(ctx, req)

	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("gRPC unary call failed",
			zap.String("method", info.FullMethod),
			zap.String("peer", peerAddr),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("gRPC unary call completed",
			zap.String("method", info.FullMethod),
			zap.String("peer", peerAddr),
			zap.Duration("duration", duration),
		)
	}

	return resp, err
}

// recoveryUnaryInterceptor recovers from panics in unary handlers.
// recoveryUnaryInterceptor 从一元处理器的 panic 中恢复。
func (s *Server) recoveryUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("gRPC unary handler panic",
				zap.String("method", info.FullMethod),
				zap.Any("panic", r),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()

	return handler(ctx, req)
}

// ==================== LauncherService 启动器服务 ====================

// Fork implements LauncherServiceServer.
// Fork 实现 LauncherServiceServer。
func (s *Server) Fork(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	params, err := forkParamsFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if params.ContainerID == "" {
		params.ContainerID = uuid.NewString()
	}

	id, err := containerid.Parse(params.ContainerID)
	if err != nil {
		return nil, toStatus(err)
	}

	pid, err := s.launcher.Fork(ctx, id, launcher.ForkRequest{
		Path:        params.Path,
		Argv:        params.Argv,
		Stdin:       process.ParseIO(params.Stdin),
		Stdout:      process.ParseIO(params.Stdout),
		Stderr:      process.ParseIO(params.Stderr),
		Flags:       params.Flags,
		Environment: params.Environment,
		Namespaces:  params.Namespaces,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	if s.store != nil {
		if err := s.store.Checkpoint(id, pid); err != nil {
			s.logger.Error("Failed to checkpoint container",
				zap.String("container_id", id.String()), zap.Int("pid", pid), zap.Error(err))
		}
	}
	return ContainerInfo{ContainerID: id.String(), PID: pid}.toStruct()
}

// Status implements LauncherServiceServer.
// Status 实现 LauncherServiceServer。
func (s *Server) Status(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := containerid.Parse(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	st, err := s.launcher.Status(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return ContainerInfo{ContainerID: st.ContainerID, PID: st.ExecutorPID}.toStruct()
}

// Destroy implements LauncherServiceServer. The request carries
// container_id and an optional wait flag.
// Destroy 实现 LauncherServiceServer。请求包含 container_id 和可选的 wait 标志。
func (s *Server) Destroy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	raw, err := stringField(fields, "container_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	wait, err := boolField(fields, "wait")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	id, err := containerid.Parse(raw)
	if err != nil {
		return nil, toStatus(err)
	}

	completion := s.launcher.Destroy(ctx, id)

	// Unknown containers resolve immediately / 未知容器立即完成
	select {
	case <-completion.Done():
		if err := completion.Err(); err != nil && !errors.Is(err, launcher.ErrKillFailed) {
			return nil, toStatus(err)
		}
	default:
	}

	if !wait {
		go s.finalize(id, completion)
		return DestroyResult{ContainerID: id.String()}.toStruct()
	}

	if err := completion.Wait(ctx); err != nil {
		go s.finalize(id, completion)
		return nil, toStatus(err)
	}
	s.finalize(id, completion)
	return DestroyResult{
		ContainerID: id.String(),
		Completed:   true,
		ExitStatus:  completion.ExitStatus(),
	}.toStruct()
}

// List implements LauncherServiceServer.
// List 实现 LauncherServiceServer。
func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	states := s.launcher.Containers(ctx)
	infos := make([]ContainerInfo, 0, len(states))
	for _, st := range states {
		infos = append(infos, ContainerInfo{ContainerID: st.ContainerID.String(), PID: st.PID})
	}
	return containerListToStruct(infos)
}

// ExitStatus implements LauncherServiceServer.
// ExitStatus 实现 LauncherServiceServer。
func (s *Server) ExitStatus(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := containerid.Parse(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "checkpointing is disabled")
	}

	exit, err := s.store.ReadExitStatus(id)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if exit == nil {
		return nil, status.Errorf(codes.NotFound, "no exit status recorded for container %s", id)
	}
	return structpb.NewStruct(map[string]any{"container_id": id.String(), "exit_status": *exit})
}

// finalize waits for the destroy and updates the checkpoints
func (s *Server) finalize(id *containerid.ID, completion *launcher.Completion) {
	<-completion.Done()
	if s.store == nil || completion.Err() != nil {
		return
	}
	if err := s.store.Finalize(id, completion.ExitStatus()); err != nil {
		s.logger.Warn("Failed to finalize checkpoint", zap.String("container_id", id.String()), zap.Error(err))
	}
}

// toStatus maps launcher errors to gRPC status errors
// toStatus 将启动器错误映射为 gRPC 状态错误
func toStatus(err error) error {
	return status.Error(codeForError(err), err.Error())
}

func codeForError(err error) codes.Code {
	switch {
	case errors.Is(err, launcher.ErrUnknownContainer), errors.Is(err, launcher.ErrContainerNotFound):
		return codes.NotFound
	case errors.Is(err, launcher.ErrAlreadyForked):
		return codes.AlreadyExists
	case errors.Is(err, launcher.ErrNamespacesUnsupported), errors.Is(err, containerid.ErrInvalid),
		errors.Is(err, launcher.ErrHierarchyTooDeep):
		return codes.InvalidArgument
	case errors.Is(err, launcher.ErrNotImplemented), errors.Is(err, launcher.ErrUnsupported):
		return codes.Unimplemented
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
