package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cachekit/pkg/cache"
	"cachekit/pkg/config"
	"cachekit/pkg/loader"
	"cachekit/pkg/logger"
	"cachekit/pkg/telemetry"
)

var (
	logLevel   = flag.String("log-level", "", "日志级别 (debug, info, warn, error)，覆盖配置文件")
	logFormat  = flag.String("log-format", "", "日志格式 (json or text)，覆盖配置文件")
	configPath = flag.String("config", "", "配置文件路径 (例如 ./config/cacheserver.yaml)")
)

// CacheServer 通过HTTP暴露一个进程内缓存实例。
type CacheServer struct {
	cfg      *config.Config
	cache    *cache.Cache[string, string]
	client   *loader.CachedClient[string] // Redis读穿客户端，未启用时为 nil
	reporter *telemetry.Reporter          // 统计上报器，未启用时为 nil
	server   *http.Server
	log      *logrus.Logger
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("加载配置失败")
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logger.GetLogger()

	gin.SetMode(cfg.Server.Mode)

	srv, err := NewCacheServer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("创建缓存服务失败")
	}
	defer srv.Close()

	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("启动缓存服务失败")
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("正在关闭缓存服务...")
	srv.Stop()
}

// NewCacheServer 根据配置组装缓存、读穿客户端与统计上报器。
func NewCacheServer(cfg *config.Config, log *logrus.Logger) (*CacheServer, error) {
	cacheCfg, err := cfg.CacheConfig()
	if err != nil {
		return nil, err
	}
	c, err := cache.New[string, string](cacheCfg)
	if err != nil {
		return nil, err
	}

	srv := &CacheServer{cfg: cfg, cache: c, log: log}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		redisLoader, err := loader.NewRedisLoader(ctx, cfg.Redis.RedisConfig)
		if err != nil {
			return nil, err
		}
		srv.client = loader.NewCachedClient[string](
			c, loader.NewBreakerLoader[string](redisLoader, cfg.Redis.Breaker))
		log.WithField("addr", cfg.Redis.Addr).Info("Redis读穿已启用")
	}

	if cfg.Telemetry.Enabled {
		reporter, err := telemetry.NewReporter(cfg.Telemetry.ReporterConfig,
			telemetry.CacheSource("cacheserver", c))
		if err != nil {
			return nil, err
		}
		srv.reporter = reporter
	}

	return srv, nil
}

// Start 注册路由并在后台启动HTTP服务。
func (s *CacheServer) Start() error {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cache/:key", s.getEntry)
		v1.PUT("/cache/:key", s.putEntry)
		v1.DELETE("/cache/:key", s.deleteEntry)
		v1.DELETE("/cache", s.clearCache)
		v1.GET("/stats", s.getStats)
	}

	s.server = &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: router,
	}

	if s.reporter != nil {
		if err := s.reporter.Start(); err != nil {
			return err
		}
	}

	s.log.WithField("port", s.cfg.Server.Port).Info("缓存服务启动中...")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("HTTP服务启动失败")
		}
	}()

	return nil
}

// Stop 优雅地关闭HTTP服务与统计上报。
func (s *CacheServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("HTTP服务关闭失败")
	}
	if s.reporter != nil {
		s.reporter.Stop()
	}
}

// Close 释放缓存与数据源资源。
func (s *CacheServer) Close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *CacheServer) healthCheck(c *gin.Context) {
	snap := s.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"size":      snap.Size,
		"max_size":  snap.MaxSize,
	})
}

// getEntry 读取一个键。启用Redis读穿时未命中会触达后端。
func (s *CacheServer) getEntry(c *gin.Context) {
	key := c.Param("key")

	if s.client != nil {
		value, err := s.client.Get(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, loader.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
		return
	}

	value, ok := s.cache.Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type putRequest struct {
	Value string `json:"value" binding:"required"`
}

func (s *CacheServer) putEntry(c *gin.Context) {
	key := c.Param("key")

	var req putRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.cache.Set(key, req.Value); err != nil {
		// 未配置淘汰策略且缓存已满
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *CacheServer) deleteEntry(c *gin.Context) {
	key := c.Param("key")
	removed := s.cache.Delete(key)
	c.JSON(http.StatusOK, gin.H{"key": key, "removed": removed})
}

func (s *CacheServer) clearCache(c *gin.Context) {
	s.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *CacheServer) getStats(c *gin.Context) {
	resp := gin.H{"cache": s.cache.Stats()}
	if s.client != nil {
		resp["client"] = s.client.Stats()
	}
	c.JSON(http.StatusOK, resp)
}
