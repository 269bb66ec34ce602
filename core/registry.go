package core

import (
	"fmt"
	"insights-gateway/config"
	"insights-gateway/core/adapter"

	"github.com/sirupsen/logrus"
)

// LocalKey 本地后端的占位凭证
const LocalKey = "local"

// NewAdapter 按名称创建后端适配器
func NewAdapter(name string, cfg *config.Config) (adapter.ModelAdapter, error) {
	switch name {
	case config.BackendGemini:
		return adapter.NewGeminiAdapter(), nil
	case config.BackendOpenAI:
		return adapter.NewOpenAIAdapter(cfg.OpenAIModel), nil
	case config.BackendClaude:
		return adapter.NewClaudeAdapter(cfg.ClaudeModel, cfg.ClaudeMaxTokens), nil
	case config.BackendOllama:
		return adapter.NewOllamaAdapter(cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrConfiguration, name)
	}
}

// BuildBackends 按配置顺序构建单后端调度器
// 凭证优先取环境变量，其次取数据库；任何后端没有凭证都在启动时失败
func BuildBackends(cfg *config.Config, store *KeyStore, recorder DispatchRecorder, logger *logrus.Logger) ([]Backend, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	backends := make([]Backend, 0, len(cfg.Backends))
	for _, name := range cfg.Backends {
		a, err := NewAdapter(name, cfg)
		if err != nil {
			return nil, err
		}

		keys, source, err := resolveKeys(a, cfg, store)
		if err != nil {
			return nil, err
		}
		rotator, err := NewKeyRotationManager(name, keys)
		if err != nil {
			return nil, err
		}

		dispatcher, err := NewBackendDispatcher(a, rotator, DispatcherConfig{
			BaseURL:  cfg.BackendURL(name),
			Timeout:  cfg.ResponseTimeout(name),
			Client:   NewHTTPClient(cfg.ConnectTimeout),
			Recorder: recorder,
		}, logger)
		if err != nil {
			return nil, err
		}

		logger.Infof("✅ Backend %s ready (%d keys from %s)", name, rotator.KeyCount(), source)
		backends = append(backends, dispatcher)
	}
	return backends, nil
}

// BuildOrchestrator 构建完整的故障转移链
func BuildOrchestrator(cfg *config.Config, store *KeyStore, recorder DispatchRecorder, logger *logrus.Logger) (*FailoverOrchestrator, error) {
	backends, err := BuildBackends(cfg, store, recorder, logger)
	if err != nil {
		return nil, err
	}
	return NewFailoverOrchestrator(backends, logger)
}

func resolveKeys(a adapter.ModelAdapter, cfg *config.Config, store *KeyStore) ([]string, string, error) {
	if !a.RequiresKey() {
		return []string{LocalKey}, "placeholder", nil
	}

	if keys := cfg.BackendKeys(a.Name()); len(keys) > 0 {
		return keys, "environment", nil
	}

	if store != nil {
		keys, err := store.Keys(a.Name())
		if err != nil {
			return nil, "", err
		}
		if len(keys) > 0 {
			return keys, "key store", nil
		}
	}

	return nil, "", fmt.Errorf("%w: no API keys configured for backend %q", ErrConfiguration, a.Name())
}
