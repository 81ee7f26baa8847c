package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server 设备配置 HTTP 服务。Start 先监听再返回，Addr 给出实际端口（addr 可为 ":0"）。
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	mu   sync.Mutex
	ln   net.Listener
	done chan error
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// BOS 导出会生成整个工作簿
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}
	return &Server{httpServer: s, logger: logger}
}

// Start 绑定端口并在后台处理请求；监听失败直接返回错误
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return fmt.Errorf("server already started on %s", s.ln.Addr())
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.ln = ln
	s.done = make(chan error, 1)
	s.logger.Info("Starting equipment config HTTP server", zap.String("addr", ln.Addr().String()))
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Addr 实际监听地址，未启动时返回配置的地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.httpServer.Addr
}

// Done 服务退出时收到 Serve 的错误（正常关闭为 nil）
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping equipment config HTTP server", zap.String("addr", s.Addr()))
	return s.httpServer.Shutdown(ctx)
}
