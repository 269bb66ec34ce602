package main

import (
	"fmt"
	"insights-gateway/config"
	"insights-gateway/core"
	"insights-gateway/core/security"
	"insights-gateway/models"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// app 进程内共享的组件，每个后端一个调度器，整个进程一个编排器
type app struct {
	cfg          *config.Config
	log          *logrus.Logger
	rotator      *core.LogRotator
	db           *gorm.DB
	keys         *core.KeyStore
	dispatchLog  *core.AsyncDispatchLogger
	orchestrator *core.FailoverOrchestrator
	executor     *core.AsyncExecutor
	service      *core.InsightsService
}

// newLogger 创建日志器，配置了日志文件时同时写入轮转文件
func newLogger(cfg *config.Config, jsonFormat bool) (*logrus.Logger, *core.LogRotator, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid INSIGHTS_LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.LogFile == "" {
		return log, nil, nil
	}
	rotator, err := core.NewLogRotator(cfg.LogFile, core.DefaultLogMaxSizeMB)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return log, rotator, nil
}

// initDatabase 初始化数据库
func initDatabase(path string, log *logrus.Logger) (*gorm.DB, error) {
	// 只在出错时记录 SQL 日志
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Debugf("Database %s initialized", path)
	return db, nil
}

func newSecretProvider(cfg *config.Config) (core.SecretProvider, error) {
	if cfg.SecretKey == "" {
		return core.NewNoOpSecretProvider(), nil
	}
	return security.NewAESSecretProvider(cfg.SecretKey)
}

// openStore 只打开数据库和凭证存储 (keys 子命令使用)
func openStore(cfg *config.Config, jsonLogs bool) (*app, error) {
	log, rotator, err := newLogger(cfg, jsonLogs)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, rotator: rotator}

	a.db, err = initDatabase(cfg.DBPath, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	secrets, err := newSecretProvider(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.keys = core.NewKeyStore(a.db, secrets)
	return a, nil
}

// newApp 构建完整的调度栈，任何后端缺少凭证都在这里失败
func newApp(cfg *config.Config, jsonLogs bool) (*app, error) {
	a, err := openStore(cfg, jsonLogs)
	if err != nil {
		return nil, err
	}

	a.dispatchLog = core.NewAsyncDispatchLogger(a.db, a.log)

	a.orchestrator, err = core.BuildOrchestrator(cfg, a.keys, a.dispatchLog, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.executor, err = core.NewAsyncExecutor(a.orchestrator, core.ExecutorConfig{
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
		Deadline:      cfg.Deadline,
		TimeoutText:   cfg.TimeoutText,
	}, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = core.NewInsightsService(a.executor, a.log)
	return a, nil
}

// Close 按依赖逆序释放
func (a *app) Close() {
	if a.executor != nil {
		a.executor.Close()
	}
	if a.dispatchLog != nil {
		a.dispatchLog.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.rotator != nil {
		a.rotator.Close()
	}
}
