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

// Package main is the entry point for the launcher agent.
// main 包是启动器 Agent 的入口点。
//
// The agent is a daemon that:
// Agent 是一个守护进程，负责：
// - Recovers the containers it launched before a restart / 恢复重启前启动的容器
// - Forks and destroys container process trees / 派生和销毁容器进程树
// - Serves an HTTP admin API and Prometheus metrics / 提供 HTTP 管理 API 和 Prometheus 指标
// - Serves the gRPC launcher service / 提供 gRPC 启动器服务
// - Records the container run history / 记录容器运行历史
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatunnel/launcher/internal/api"
	"github.com/seatunnel/launcher/internal/checkpoint"
	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/db"
	launchergrpc "github.com/seatunnel/launcher/internal/grpc"
	"github.com/seatunnel/launcher/internal/history"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/logger"
	"github.com/seatunnel/launcher/internal/metrics"
	"github.com/seatunnel/launcher/internal/tracing"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Agent represents the launcher service that integrates all components
// Agent 表示集成所有组件的启动器服务
type Agent struct {
	// config holds the agent configuration
	// config 保存 Agent 配置
	config *config.Config

	logger *zap.Logger

	// ctx is the main context for the agent
	// ctx 是 Agent 的主上下文
	ctx    context.Context
	cancel context.CancelFunc

	// launcher owns the container registry
	// launcher 持有容器注册表
	launcher launcher.Launcher

	// store persists container checkpoints
	// store 持久化容器检查点
	store *checkpoint.Store

	collector *metrics.Collector
	tracing   *tracing.Provider

	// database and recorder back the run history, nil when disabled
	// database 和 recorder 承载运行历史，禁用时为 nil
	database *gorm.DB
	recorder *history.RecordingLauncher

	// server is the admin API, nil when disabled
	// server 是管理 API，禁用时为 nil
	server *api.Server

	// grpcServer is the gRPC launcher service, nil when disabled
	// grpcServer 是 gRPC 启动器服务，禁用时为 nil
	grpcServer *launchergrpc.Server

	// running indicates if the agent is running
	// running 表示 Agent 是否正在运行
	running bool

	// mu protects the running state
	// mu 保护运行状态
	mu sync.RWMutex
}

// NewAgent creates a new Agent instance with all components initialized
// NewAgent 创建一个初始化所有组件的新 Agent 实例
func NewAgent(cfg *config.Config, log *zap.Logger) (*Agent, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	tp, err := tracing.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	collector := metrics.NewCollector(metrics.DefaultNamespace)

	l, err := launcher.Create(cfg, launcher.Options{
		Recorder: collector,
		Tracer:   tp.Tracer(),
		Logger:   log.Named("launcher"),
	})
	if err != nil {
		cancel()
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create launcher: %w", err)
	}

	store := checkpoint.NewStore(cfg.Launcher.RuntimeDir, l.Name(), log.Named("checkpoint"))

	a := &Agent{
		config:    cfg,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
		store:     store,
		collector: collector,
		tracing:   tp,
	}

	var handlerOpts []api.HandlerOption
	if cfg.Database.Enabled {
		database, err := db.Open(cfg.Database, log.Named("db"))
		if err != nil {
			cancel()
			_ = tp.Shutdown(context.Background())
			return nil, err
		}
		repo := history.NewRepository(database)
		if err := repo.Migrate(ctx); err != nil {
			cancel()
			_ = db.Close(database)
			_ = tp.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to migrate history: %w", err)
		}

		a.database = database
		a.recorder = history.NewRecordingLauncher(l, repo, log.Named("history"))
		l = a.recorder
		handlerOpts = append(handlerOpts, api.WithHistory(repo))
	}
	a.launcher = l

	if cfg.API.Enabled {
		handler := api.NewHandler(l, store, log.Named("api"), handlerOpts...)
		router := api.NewRouter(handler, api.RouterOptions{
			ServiceName:    cfg.Telemetry.ServiceName,
			TracerProvider: tp.TracerProvider(),
			Metrics:        collector.Handler(),
			Logger:         log.Named("http"),
		})
		a.server = api.NewServer(cfg.API.Address, router, log.Named("api"))
	}

	if cfg.GRPC.Enabled {
		a.grpcServer = launchergrpc.NewServer(&launchergrpc.ServerConfig{
			Address:  cfg.GRPC.Address,
			CertFile: cfg.GRPC.CertFile,
			KeyFile:  cfg.GRPC.KeyFile,
			CAFile:   cfg.GRPC.CAFile,
		}, l, store, log.Named("grpc"))
	}
	return a, nil
}

// Run recovers checkpointed containers, starts the admin API and blocks until
// Shutdown is called.
// Run 恢复检查点中的容器，启动管理 API，并阻塞直到调用 Shutdown。
func (a *Agent) Run() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("agent is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("Launcher agent starting",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("launcher", a.launcher.Name()),
		zap.String("runtime_dir", a.config.Launcher.RuntimeDir))

	// Step 1: Recover containers from checkpoints
	// 步骤 1：从检查点恢复容器
	if err := a.recover(); err != nil {
		return err
	}

	// Step 2: Start the gRPC launcher service
	// 步骤 2：启动 gRPC 启动器服务
	if a.grpcServer != nil {
		if err := a.grpcServer.Start(); err != nil {
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}

	// Step 3: Start the admin API
	// 步骤 3：启动管理 API
	var serverErr <-chan error
	if a.server != nil {
		serverErr = a.server.Start()
	}

	a.logger.Info("Launcher agent started")

	// Wait for shutdown or a server failure
	// 等待关闭或服务器失败
	select {
	case <-a.ctx.Done():
		return nil
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("admin API failed: %w", err)
		}
		<-a.ctx.Done()
		return nil
	}
}

// recover feeds the checkpointed containers to the launcher
func (a *Agent) recover() error {
	states, err := a.store.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan checkpoints: %w", err)
	}

	orphans, err := a.launcher.Recover(a.ctx, states)
	if err != nil {
		return fmt.Errorf("failed to recover containers: %w", err)
	}
	for _, id := range orphans {
		a.logger.Warn("Orphan container", zap.String("container_id", id.String()))
	}
	return nil
}

// Shutdown stops the servers, flushes the history and stops tracing. Containers keep running and are
// recovered on the next start.
// Shutdown 停止服务器，刷新历史并停止追踪。容器继续运行，并在下次启动时恢复。
func (a *Agent) Shutdown() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		a.cancel()
		return
	}
	a.running = false
	a.mu.Unlock()

	a.logger.Info("Shutting down launcher agent")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if a.server != nil {
		if err := a.server.Stop(shutdownCtx); err != nil {
			a.logger.Warn("Error stopping admin API", zap.Error(err))
		}
	}
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}
	if a.recorder != nil {
		flushed := make(chan struct{})
		go func() {
			a.recorder.Flush()
			close(flushed)
		}()
		select {
		case <-flushed:
		case <-shutdownCtx.Done():
			a.logger.Warn("Timed out recording pending destroys")
		}
	}
	if a.database != nil {
		if err := db.Close(a.database); err != nil {
			a.logger.Warn("Error closing database", zap.Error(err))
		}
	}
	if err := a.tracing.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Error shutting down tracing", zap.Error(err))
	}

	a.cancel()
	a.logger.Info("Launcher agent shutdown complete")
}

var rootCmd = &cobra.Command{
	Use:   "seatunnel-launcher",
	Short: "Container process launcher agent",
	Long: `seatunnel-launcher starts, tracks, recovers and destroys the process
trees backing containers.
seatunnel-launcher 负责启动、跟踪、恢复和销毁承载容器的进程树。

Each container runs as a new session so its whole process tree can be
killed at once. Checkpoints under the runtime directory let the agent
recover its containers after a restart.`,
	SilenceUsage: true,
	RunE:         runAgent,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information / 打印版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "SeaTunnel Launcher\n")
		fmt.Fprintf(out, "  Version:    %s\n", Version)
		fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <container-id>",
	Short: "Print the exit status checkpoint path of a container / 打印容器退出状态检查点路径",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		id, err := containerid.Parse(args[0])
		if err != nil {
			return err
		}

		name := cfg.Launcher.Name
		if name == "" {
			name = launcher.HostVariant()
		}
		path, err := launcher.ExitStatusCheckpointPath(cfg.Launcher.RuntimeDir, name, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var containersCmd = &cobra.Command{
	Use:   "containers",
	Short: "List the containers of a running agent over gRPC / 通过 gRPC 列出运行中 Agent 的容器",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := launchergrpc.NewClient(cfg.GRPC.Address)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		infos, err := client.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list containers: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-40s %s\n", "CONTAINER", "PID")
		for _, info := range infos {
			fmt.Fprintf(out, "%-40s %d\n", info.ContainerID, info.PID)
		}
		return nil
	},
}

// Command line flags
// 命令行标志
var (
	configFile  string
	logLevel    string
	runtimeDir  string
	apiAddress  string
	grpcAddress string
)

func init() {
	// Add flags to root command
	// 向根命令添加标志
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&runtimeDir, "runtime-dir", "", "runtime state directory")
	rootCmd.PersistentFlags().StringVar(&apiAddress, "api-address", "", "admin API listen address")
	rootCmd.PersistentFlags().StringVar(&grpcAddress, "grpc-address", "", "gRPC launcher service address")

	// Add subcommands
	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(containersCmd)
}

// loadConfig loads and validates the configuration, command line flags first
// loadConfig 加载并验证配置，命令行标志优先
func loadConfig() (*config.Config, error) {
	cmdArgs := make(map[string]interface{})
	if logLevel != "" {
		cmdArgs["log.level"] = logLevel
	}
	if runtimeDir != "" {
		cmdArgs["launcher.runtime_dir"] = runtimeDir
	}
	if apiAddress != "" {
		cmdArgs["api.address"] = apiAddress
	}
	if grpcAddress != "" {
		cmdArgs["grpc.address"] = grpcAddress
	}

	cfg, err := config.LoadWithPriority(configFile, cmdArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runAgent is the main entry point for the agent service
// runAgent 是 Agent 服务的主入口点
func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	agent, err := NewAgent(cfg, log)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	// 设置信号处理以实现优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Run agent in goroutine
	// 在 goroutine 中运行 Agent
	errChan := make(chan error, 1)
	go func() {
		errChan <- agent.Run()
	}()

	// Wait for signal or error
	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal", zap.String("signal", sig.String()))
		agent.Shutdown()
		return <-errChan
	case err := <-errChan:
		agent.Shutdown()
		return err
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
