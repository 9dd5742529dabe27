package app

import (
	"context"
	"errors"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/provider"
	"github.com/fanzfinance/internal/router"
	"github.com/fanzfinance/internal/worker"
)

// BuildRunner 构建服务运行器，返回的容器由调用方关闭
func BuildRunner(ctx context.Context, cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}
	if mode != ModeAll && mode != ModeAPI && mode != ModeWorker {
		return nil, nil, errors.New("unknown mode: " + mode)
	}

	container, err := provider.NewContainer(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := container.Bootstrap(ctx); err != nil {
		_ = container.Close()
		return nil, nil, err
	}

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	// 初始化 Worker 服务：出站事件与超时扫描，队列启用时同时消费任务
	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(cfg, consumer)
		if err != nil {
			_ = container.Close()
			return nil, nil, err
		}
		services = append(services, workerService)
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, container, err := BuildRunner(context.Background(), opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			opts.Logger.Warnw("app_container_close_failed", "error", err)
		}
	}()

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode, "queue_enabled", opts.Config.Queue.Enabled)
	return RunWithOptions(runner, opts)
}
