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

// Package db opens the database that backs the container history.
// db 包打开承载容器历史的数据库。
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/seatunnel/launcher/internal/config"
)

// DatabaseType 数据库类型常量
const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypeMySQL    = "mysql"
	DatabaseTypePostgres = "postgres"
)

// Open connects to the database described by cfg. sqlite is used when no
// type is configured.
// Open 根据 cfg 连接数据库，未配置类型时默认使用 SQLite。
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dbType := cfg.Type
	if dbType == "" {
		dbType = DatabaseTypeSQLite
	}

	dialector, err := newDialector(dbType, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s driver: %w", dbType, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dbType, err)
	}

	// 注入 OpenTelemetry 追踪
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Warn("Failed to install database tracing plugin", zap.Error(err))
	}

	// 配置连接池（MySQL 和 PostgreSQL），SQLite 使用单连接
	if dbType == DatabaseTypeSQLite {
		if err := configureSQLite(db); err != nil {
			_ = Close(db)
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	} else if err := configureConnectionPool(db, cfg); err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	log.Info("Connected to database", zap.String("type", dbType))
	return db, nil
}

// Close closes the underlying connection pool.
// Close 关闭底层连接池。
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

func newDialector(dbType string, cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch dbType {
	case DatabaseTypeSQLite:
		return sqliteDialector(cfg.SQLitePath)
	case DatabaseTypeMySQL:
		return mysql.Open(mysqlDSN(cfg)), nil
	case DatabaseTypePostgres:
		return postgres.Open(postgresDSN(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q (supported: sqlite, mysql, postgres)", dbType)
	}
}

// sqliteDialector 初始化 SQLite 驱动，确保目录存在
func sqliteDialector(path string) (gorm.Dialector, error) {
	if path == "" {
		path = config.DefaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}
	return sqlite.Open(path), nil
}

// configureSQLite serializes access through one connection and waits on
// locks instead of failing with SQLITE_BUSY.
// configureSQLite 通过单连接串行访问，并在锁冲突时等待。
func configureSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)
}

func postgresDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)
}

// configureConnectionPool 配置数据库连接池
func configureConnectionPool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	return nil
}

// gormLogger 根据配置获取 GORM 日志记录器
func gormLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "info":
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}
	return logger.Default.LogMode(logLevel)
}
