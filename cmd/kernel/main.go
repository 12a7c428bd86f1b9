package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forgeflow/kernel/agent"
	"github.com/forgeflow/kernel/apiserver"
	"github.com/forgeflow/kernel/config"
	"github.com/forgeflow/kernel/monitor"
	"github.com/forgeflow/kernel/realtime"
	"github.com/forgeflow/kernel/relay"
	"github.com/forgeflow/kernel/task"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 配置日志
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 组装组件
	mon := monitor.New(cfg.Monitor)
	registry := realtime.NewRegistry()
	store := task.NewStore()
	gateway := agent.NewHTTPGateway(cfg.Agent)
	directory := agent.NewDirectory(gateway)
	orchestrator := task.NewOrchestrator(store, registry, gateway, directory, mon)

	mon.Start(ctx)

	if cfg.Relay.Enabled {
		r := relay.New(cfg.Relay, registry)
		if err := r.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("事件中继启动失败, 继续以单实例模式运行")
		}
	}

	log.Info().
		Bool("api_ready", gateway.Available()).
		Bool("relay", cfg.Relay.Enabled).
		Msg("ForgeFlow Kernel 启动中")

	server := apiserver.New(cfg.Server, store, orchestrator, directory, gateway, registry, mon)
	go func() {
		if err := server.Start(ctx); err != nil {
			log.Error().Err(err).Msg("API Server 退出异常")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("正在关闭服务...")
	cancel()
}
