// Command pricer 批量定价配置中的场景，或以 HTTP 服务方式运行。
//
//	go run ./cmd/pricer -config configs/config.yaml -convergence
//	go run ./cmd/pricer -config configs/config.yaml -serve -watch
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"option-lattice-go/internal/container"
	"option-lattice-go/report"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "可选的 .env 文件，存在时加载 LATTICE_* 变量")
	serve := flag.Bool("serve", false, "启动 HTTP 定价接口")
	watch := flag.Bool("watch", false, "监听配置文件，热更新场景（需配合 -serve）")
	format := flag.String("format", "", "输出格式 table/csv/json，留空使用配置")
	convergence := flag.Bool("convergence", false, "同时输出与闭式价格的收敛表")
	scenario := flag.String("scenario", "", "仅定价指定场景")
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("加载 %s 失败: %v", *envFile, err)
		}
	}

	c, err := container.New(*cfgPath, container.Options{Serve: *serve, Watch: *watch && *serve})
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	if !*serve {
		f := *format
		if f == "" {
			f = c.Config().Report.Format
		}
		outFormat, err := report.ParseFormat(f)
		if err != nil {
			log.Fatalf("%v", err)
		}
		job := batch{
			cfg:         c.Config(),
			engine:      c.Engine(),
			logger:      c.Logger(),
			alerts:      c.Alerts(),
			format:      outFormat,
			convergence: *convergence,
			only:        *scenario,
		}
		runErr := job.run(context.Background(), os.Stdout)
		_ = c.Stop()
		if runErr != nil {
			log.Fatalf("定价失败: %v", runErr)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}
	<-ctx.Done()
	if err := c.Stop(); err != nil {
		log.Printf("停止时出错: %v", err)
	}
}
