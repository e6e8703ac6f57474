package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PlaylistInsight/logger"

	"github.com/gorilla/mux"
)

// corsMiddleware 添加 CORS 头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter 注册看板数据API路由
func NewRouter(source DashboardSource) *mux.Router {
	h := NewAPIHandler(source)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// mux 只在路由匹配后才执行中间件，预检请求需要单独放行
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/runs", h.RunsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/runs/{id}/dashboard", h.DashboardHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/runs/{id}/tracks", h.RunTracksHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/runs/{id}/playlists", h.RunPlaylistsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/dashboard", h.DashboardHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/features", h.FeaturesHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/correlations", h.CorrelationsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trends", h.TrendsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/artists/top", h.TopArtistsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/tracks/top", h.TopTracksHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/playlists", h.PlaylistsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/quality", h.QualityHandler).Methods(http.MethodGet, http.MethodOptions)
	return router
}

// Start 启动HTTP服务，收到中断信号后优雅关闭
func Start(port string, source DashboardSource) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(source),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
