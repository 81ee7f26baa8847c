package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
	"skyfire-equipment/internal/repository"
	"skyfire-equipment/internal/service"
	"skyfire-equipment/internal/state"
)

const maxBodyBytes = 1 << 20

// Projects 项目配置服务（由 service.ProjectService 实现）
type Projects interface {
	Load(ctx context.Context, projectID string) (*service.ProjectView, error)
	SetFields(ctx context.Context, projectID string, updates []state.Update) (*service.ChangeResult, error)
	Rederive(ctx context.Context, projectID string) (*service.ChangeResult, error)
	Flush(ctx context.Context, projectID string) (*service.ChangeResult, error)
	AddSubsystem(ctx context.Context, projectID string, n int) (*service.ProjectView, error)
	RemoveSubsystem(ctx context.Context, projectID string, n int) (*service.ChangeResult, error)
	RequestCombine(ctx context.Context, projectID string, choice domain.CombineDecision) (*service.CombineResult, error)
	ConfirmCombine(ctx context.Context, projectID string) (*service.CombineResult, error)
	CancelCombine(ctx context.Context, projectID string) (*service.CombineResult, error)
	SetCombineLanding(ctx context.Context, projectID string, positions map[int]string) (*service.CombineResult, error)
	DetectBOS(ctx context.Context, projectID string, answers []bos.POIAnswer) (*bos.Result, error)
	AcceptBOS(ctx context.Context, projectID string, items []domain.BOSItem) (*service.AcceptResult, error)
	Revisions(ctx context.Context, projectID string, page, size int) ([]*repository.Revision, int, error)
}

var _ Projects = (*service.ProjectService)(nil)

// ProjectHandler 项目配置 API
type ProjectHandler struct {
	projects Projects
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProjectHandler(projects Projects, logger *zap.Logger) *ProjectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectHandler{projects: projects, validate: validator.New(), logger: logger}
}

type fieldUpdateDTO struct {
	Field     string `json:"field" validate:"required_without=Key"`
	Subsystem int    `json:"subsystem" validate:"min=0,max=4"`
	Value     any    `json:"value"`
	Key       string `json:"key"`
}

type setFieldsRequest struct {
	Updates []fieldUpdateDTO `json:"updates" validate:"required,min=1,dive"`
}

type addSubsystemRequest struct {
	Index int `json:"index" validate:"required,min=1,max=4"`
}

type combineRequest struct {
	Choice string `json:"choice" validate:"required,oneof=combine do_not_combine"`
}

type landingRequest struct {
	Positions map[string]string `json:"positions"`
}

type detectRequest struct {
	Answers []bos.POIAnswer `json:"answers" validate:"dive"`
}

type acceptRequest struct {
	Items []domain.BOSItem `json:"items"`
}

// decode 读取并校验请求体；失败时已写入响应
func (h *ProjectHandler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			h.logger.Warn("request body rejected", zap.String("path", r.URL.Path), zap.Int64("limit", maxBodyBytes))
			writeJSON(w, http.StatusRequestEntityTooLarge, Fail(fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes)))
			return false
		}
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid request: %v", err)))
		return false
	}
	return true
}

// writeChange 写操作统一响应；持久化失败时仍返回状态
func writeChange[T any](w http.ResponseWriter, res T, warnings []string, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailure) {
			writeJSON(w, http.StatusBadGateway, FailWith(err.Error(), res))
			return
		}
		writeJSON(w, statusFor(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkWithWarnings(res, warnings))
}

func changeWarnings(res *service.ChangeResult) []string {
	if res == nil {
		return nil
	}
	return res.Warnings
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request, projectID string) {
	view, err := h.projects.Load(r.Context(), projectID)
	if err != nil {
		writeJSON(w, statusFor(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

func (h *ProjectHandler) SetFields(w http.ResponseWriter, r *http.Request, projectID string) {
	var req setFieldsRequest
	if !h.decode(w, r, &req) {
		return
	}
	updates := make([]state.Update, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.Key != "" {
			updates = append(updates, state.Update{Key: u.Key, Value: u.Value})
			continue
		}
		field, ok := fieldmap.Parse(u.Field)
		if !ok {
			field = fieldmap.Field(u.Field)
		}
		updates = append(updates, state.Update{Field: field, Subsystem: u.Subsystem, Value: u.Value})
	}
	res, err := h.projects.SetFields(r.Context(), projectID, updates)
	writeChange(w, res, changeWarnings(res), err)
}

func (h *ProjectHandler) Rederive(w http.ResponseWriter, r *http.Request, projectID string) {
	res, err := h.projects.Rederive(r.Context(), projectID)
	writeChange(w, res, nil, err)
}

func (h *ProjectHandler) Flush(w http.ResponseWriter, r *http.Request, projectID string) {
	res, err := h.projects.Flush(r.Context(), projectID)
	writeChange(w, res, nil, err)
}

func (h *ProjectHandler) AddSubsystem(w http.ResponseWriter, r *http.Request, projectID string) {
	var req addSubsystemRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.projects.AddSubsystem(r.Context(), projectID, req.Index)
	writeChange(w, view, nil, err)
}

func (h *ProjectHandler) RemoveSubsystem(w http.ResponseWriter, r *http.Request, projectID, index string) {
	n, err := strconv.Atoi(index)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid subsystem index"))
		return
	}
	res, err := h.projects.RemoveSubsystem(r.Context(), projectID, n)
	writeChange(w, res, nil, err)
}

func (h *ProjectHandler) RequestCombine(w http.ResponseWriter, r *http.Request, projectID string) {
	var req combineRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.projects.RequestCombine(r.Context(), projectID, domain.CombineDecision(req.Choice))
	writeCombine(w, res, err)
}

func (h *ProjectHandler) ConfirmCombine(w http.ResponseWriter, r *http.Request, projectID string) {
	res, err := h.projects.ConfirmCombine(r.Context(), projectID)
	writeCombine(w, res, err)
}

func (h *ProjectHandler) CancelCombine(w http.ResponseWriter, r *http.Request, projectID string) {
	res, err := h.projects.CancelCombine(r.Context(), projectID)
	writeCombine(w, res, err)
}

func (h *ProjectHandler) SetCombineLanding(w http.ResponseWriter, r *http.Request, projectID string) {
	var req landingRequest
	if !h.decode(w, r, &req) {
		return
	}
	positions := make(map[int]string, len(req.Positions))
	for k, v := range req.Positions {
		n, err := strconv.Atoi(k)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid subsystem %q", k)))
			return
		}
		positions[n] = v
	}
	res, err := h.projects.SetCombineLanding(r.Context(), projectID, positions)
	writeCombine(w, res, err)
}

func writeCombine(w http.ResponseWriter, res *service.CombineResult, err error) {
	var warnings []string
	if res != nil && res.ChangeResult != nil {
		warnings = res.Warnings
	}
	writeChange(w, res, warnings, err)
}

// detectResponse 检测结果；用户取消时 cancelled=true
type detectResponse struct {
	*bos.Result
	Cancelled bool `json:"cancelled"`
}

func (h *ProjectHandler) DetectBOS(w http.ResponseWriter, r *http.Request, projectID string) {
	var req detectRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.projects.DetectBOS(r.Context(), projectID, req.Answers)
	if err != nil {
		if errors.Is(err, domain.ErrUserCancelled) {
			writeJSON(w, http.StatusOK, Ok(detectResponse{Result: &bos.Result{}, Cancelled: true}))
			return
		}
		writeJSON(w, statusFor(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkWithWarnings(detectResponse{Result: res}, res.Warnings))
}

func (h *ProjectHandler) AcceptBOS(w http.ResponseWriter, r *http.Request, projectID string) {
	var req acceptRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.projects.AcceptBOS(r.Context(), projectID, req.Items)
	var warnings []string
	if res != nil && res.ChangeResult != nil {
		warnings = res.Warnings
	}
	writeChange(w, res, warnings, err)
}

// ExportBOS 运行检测并导出 xlsx；需要 POI 输入或取消时返回 JSON
func (h *ProjectHandler) ExportBOS(w http.ResponseWriter, r *http.Request, projectID string) {
	var req detectRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.projects.DetectBOS(r.Context(), projectID, req.Answers)
	if err != nil {
		if errors.Is(err, domain.ErrUserCancelled) {
			writeJSON(w, http.StatusOK, Ok(detectResponse{Result: &bos.Result{}, Cancelled: true}))
			return
		}
		writeJSON(w, statusFor(err), Fail(err.Error()))
		return
	}
	if res.Suspended() {
		writeJSON(w, http.StatusOK, Ok(detectResponse{Result: res}))
		return
	}

	data, err := GenerateBOSExport(projectID, res)
	if err != nil {
		h.logger.Error("failed to generate bos export", zap.String("project_id", projectID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}
	filename := fmt.Sprintf("bos-%s-%s.xlsx", projectID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ProjectHandler) Revisions(w http.ResponseWriter, r *http.Request, projectID string) {
	page, size := pageParams(r)
	items, total, err := h.projects.Revisions(r.Context(), projectID, page, size)
	if err != nil {
		writeJSON(w, statusFor(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
	}))
}
