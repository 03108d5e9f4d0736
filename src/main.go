package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/configs/database"
	"mealchat-server-go/src/configs/server"
	"mealchat-server-go/src/core/health"
	"mealchat-server-go/src/core/image"
	"mealchat-server-go/src/core/meal"
	"mealchat-server-go/src/core/metrics"
	"mealchat-server-go/src/core/providers/vlllm"
	"mealchat-server-go/src/core/uploads"
	"mealchat-server-go/src/core/utils"
	"mealchat-server-go/src/mealchat"

	// 导入所有providers以确保init函数被调用
	_ "mealchat-server-go/src/core/providers/vlllm/ollama"
	_ "mealchat-server-go/src/core/providers/vlllm/openai"
	_ "mealchat-server-go/src/core/providers/vlllm/stub"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))

	return config, logger, nil
}

// app 运行期依赖
type app struct {
	config    *configs.Config
	logger    *utils.Logger
	processor *image.ImageProcessor
	pipeline  *meal.Pipeline
	uploads   *uploads.Repository
}

func newApp(config *configs.Config, logger *utils.Logger, db *gorm.DB) (*app, error) {
	name, vlllmConfig, err := config.SelectedVLLM()
	if err != nil {
		return nil, err
	}

	provider, err := vlllm.Create(vlllmConfig.Type, &vlllmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("创建VLLLM provider %s 失败: %w", name, err)
	}
	logger.Info(fmt.Sprintf("VLLLM provider %s 初始化成功，模型: %s", name, vlllmConfig.ModelName))

	processor, err := image.NewImageProcessor(&vlllmConfig.Security, config.Upload.Dir, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		config:    config,
		logger:    logger,
		processor: processor,
		pipeline:  meal.NewPipeline(processor, provider, vlllmConfig.Detail, logger),
		uploads:   uploads.NewRepository(db),
	}, nil
}

func StartHttpServer(a *app, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config, logger := a.config, a.logger

	// 初始化Gin引擎
	if utils.ParseLevel(config.Log.LogLevel) == utils.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.SetTrustedProxies([]string{"0.0.0.0"})

	// API路由全部挂载到/api前缀下
	apiGroup := router.Group("/api")

	mealService, err := mealchat.NewDefaultMealService(config, a.pipeline, a.processor, a.uploads, logger)
	if err != nil {
		logger.Error("Meal 服务初始化失败", err)
		return nil, err
	}
	if err := mealService.Start(groupCtx, router, apiGroup); err != nil {
		logger.Error("Meal 服务启动失败", err)
		return nil, err
	}

	cfgService, err := server.NewDefaultCfgService(config, logger)
	if err != nil {
		return nil, err
	}
	if err := cfgService.Start(groupCtx, router, apiGroup); err != nil {
		logger.Error("Cfg 服务启动失败", err)
		return nil, err
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 静态页面
	if config.Web.StaticDir != "" {
		router.StaticFile("/", config.Web.StaticDir+"/index.html")
		router.Static("/static", config.Web.StaticDir)
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://%s", httpServer.Addr))

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
			if err := mealService.Cleanup(); err != nil {
				logger.Warn(fmt.Sprintf("Meal服务清理失败: %v", err))
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func StartJanitor(a *app, g *errgroup.Group, groupCtx context.Context) {
	janitor := uploads.NewJanitor(a.uploads, a.processor, a.config.UploadTTL(), a.logger)
	g.Go(func() error {
		return janitor.Run(groupCtx)
	})
	a.logger.Info(fmt.Sprintf("上传清理任务已启动，保留时间: %s", a.config.UploadTTL()))
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 等待信号
	sig := <-sigChan
	logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))

	// 取消上下文，通知所有服务开始关闭
	cancel()

	// 等待所有服务关闭，设置超时保护
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", err)
			os.Exit(1)
		}
		logger.Info("所有服务已优雅关闭")
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		os.Exit(1)
	}
}

func main() {
	// 加载 .env 文件，DATABASE_URL 等变量可在其中设置
	envErr := godotenv.Load()

	// 加载配置和初始化日志系统
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()
	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	// 初始化数据库连接
	db, dbType, err := database.InitDB(config.Database.DSN)
	if err != nil {
		logger.Error("数据库连接失败", err)
		os.Exit(1)
	}
	logger.Info(fmt.Sprintf("数据库连接成功: %s", dbType))

	metrics.Register()

	// 启动前检查所选模型是否可用
	if connConfig := health.ConfigFromYAML(&config.ConnectivityCheck); connConfig.Enabled {
		checker := health.NewHealthChecker(config, connConfig, logger)
		err := checker.CheckVLLLM(context.Background())
		checker.PrintReport()
		if err != nil {
			logger.Error("连通性检查失败", err)
			os.Exit(1)
		}
	}

	a, err := newApp(config, logger, db)
	if err != nil {
		logger.Error("初始化失败", err)
		os.Exit(1)
	}

	// 创建可取消的上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 用 errgroup 管理 HTTP 服务与上传清理任务
	g, groupCtx := errgroup.WithContext(ctx)

	if _, err := StartHttpServer(a, g, groupCtx); err != nil {
		logger.Error("启动 Http 服务失败", err)
		cancel()
		os.Exit(1)
	}
	StartJanitor(a, g, groupCtx)

	// 启动优雅关机处理
	GracefulShutdown(cancel, logger, g)

	logger.Info("程序已成功退出")
}
