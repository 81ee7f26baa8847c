package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"skyfire-equipment/internal/bos"
)

const projectsPrefix = "/equipment/api/v1/projects"

// Router 使用标准库 http.ServeMux（方法 + 路径通配符模式）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// project 把 {id} 路径参数传给处理函数
func project(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		fn(w, req, req.PathValue("id"))
	}
}

// RegisterProjectRoutes 注册项目配置路由
func (r *Router) RegisterProjectRoutes(h *ProjectHandler) {
	r.Handle("GET "+projectsPrefix+"/{id}", project(h.Get))
	r.Handle("POST "+projectsPrefix+"/{id}/fields", project(h.SetFields))
	r.Handle("POST "+projectsPrefix+"/{id}/rederive", project(h.Rederive))
	r.Handle("POST "+projectsPrefix+"/{id}/flush", project(h.Flush))

	r.Handle("POST "+projectsPrefix+"/{id}/subsystems", project(h.AddSubsystem))
	r.Handle("DELETE "+projectsPrefix+"/{id}/subsystems/{n}", func(w http.ResponseWriter, req *http.Request) {
		h.RemoveSubsystem(w, req, req.PathValue("id"), req.PathValue("n"))
	})

	r.Handle("POST "+projectsPrefix+"/{id}/combine", project(h.RequestCombine))
	r.Handle("POST "+projectsPrefix+"/{id}/combine/confirm", project(h.ConfirmCombine))
	r.Handle("POST "+projectsPrefix+"/{id}/combine/cancel", project(h.CancelCombine))
	r.Handle("PUT "+projectsPrefix+"/{id}/combine/landing", project(h.SetCombineLanding))

	r.Handle("POST "+projectsPrefix+"/{id}/bos/detect", project(h.DetectBOS))
	r.Handle("POST "+projectsPrefix+"/{id}/bos/accept", project(h.AcceptBOS))
	r.Handle("POST "+projectsPrefix+"/{id}/bos/export", project(h.ExportBOS))

	r.Handle("GET "+projectsPrefix+"/{id}/revisions", project(h.Revisions))
}

// CacheInvalidator 公用事业要求缓存
type CacheInvalidator interface {
	Invalidate(ctx context.Context) (int, error)
}

// RegisterOpsRoutes 注册运维路由（健康检查、指标、参考数据、缓存清理）
func (r *Router) RegisterOpsRoutes(configs *bos.UtilityConfigs, cache CacheInvalidator) {
	r.Handle("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
	r.HandleHandler("GET /metrics", promhttp.Handler())

	r.Handle("GET /equipment/api/v1/bos/poi-types", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(bos.POITypes))
	})
	if configs != nil {
		r.Handle("GET /equipment/api/v1/bos/utilities", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, Ok(configs.Codes()))
		})
	}
	if cache != nil {
		r.Handle("POST /equipment/api/v1/utility-requirements/cache/invalidate", func(w http.ResponseWriter, req *http.Request) {
			n, err := cache.Invalidate(req.Context())
			if err != nil {
				r.logger.Error("failed to invalidate utility requirement cache", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
				return
			}
			r.logger.Info("utility requirement cache invalidated", zap.Int("keys", n))
			writeJSON(w, http.StatusOK, Ok(map[string]any{"removed": n}))
		})
	}
}
