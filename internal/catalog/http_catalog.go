package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/metrics"
)

// Options 目录客户端配置
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	RetryCount int
}

// HTTPCatalog 设备目录 API 客户端
type HTTPCatalog struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewHTTPCatalog 创建目录客户端
func NewHTTPCatalog(opts Options, logger *zap.Logger) *HTTPCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPCatalog{
		httpClient: newRestyClient(opts),
		limiter:    newLimiter(opts),
		logger:     logger,
	}
}

func newRestyClient(opts Options) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")
}

func newLimiter(opts Options) *rate.Limiter {
	if opts.RatePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
}

// catalogModel /equipment/models 返回的型号
type catalogModel struct {
	ID           any     `json:"id"`
	Manufacturer string  `json:"manufacturer"`
	ModelNumber  string  `json:"model_number"`
	AmpRating    float64 `json:"amp_rating"`
}

type modelsResponse struct {
	Data []catalogModel `json:"data"`
}

type validateRequest struct {
	EquipmentType string `json:"equipment_type"`
	Manufacturer  string `json:"manufacturer"`
	Model         string `json:"model"`
}

type validateResponse struct {
	Status      string         `json:"status"`
	Match       *catalogModel  `json:"match"`
	Suggestions []catalogModel `json:"suggestions"`
}

func (m catalogModel) toEquipment(equipmentType, manufacturer string) domain.CatalogEquipment {
	brand := m.Manufacturer
	if brand == "" {
		brand = manufacturer
	}
	return domain.CatalogEquipment{
		EquipmentType: equipmentType,
		Manufacturer:  brand,
		Model:         m.ModelNumber,
		AmpRating:     m.AmpRating,
	}
}

// FindEquipment 指定型号时走校验接口，否则列出该类型（和品牌）的全部型号作为候选
func (c *HTTPCatalog) FindEquipment(ctx context.Context, equipmentType, manufacturer, model string) (*domain.CatalogMatch, error) {
	if strings.TrimSpace(equipmentType) == "" {
		return nil, fmt.Errorf("equipment type is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if model != "" {
		return c.validate(ctx, equipmentType, manufacturer, model)
	}
	return c.models(ctx, equipmentType, manufacturer)
}

func (c *HTTPCatalog) models(ctx context.Context, equipmentType, manufacturer string) (*domain.CatalogMatch, error) {
	start := time.Now()
	params := map[string]string{"type": equipmentType}
	if manufacturer != "" {
		params["manufacturer"] = manufacturer
	}
	var out modelsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/equipment/models")
	if err != nil {
		metrics.ObserveCatalog("models", "error", start)
		c.logger.Error("catalog models request failed", zap.String("type", equipmentType), zap.Error(err))
		return nil, fmt.Errorf("failed to call catalog: %w", err)
	}
	metrics.ObserveCatalog("models", strconv.Itoa(resp.StatusCode()), start)
	if resp.IsError() {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode())
	}

	match := &domain.CatalogMatch{Status: "unmatched"}
	for _, m := range out.Data {
		match.Suggestions = append(match.Suggestions, m.toEquipment(equipmentType, manufacturer))
	}
	c.logger.Debug("catalog models fetched",
		zap.String("type", equipmentType),
		zap.String("manufacturer", manufacturer),
		zap.Int("count", len(match.Suggestions)),
	)
	return match, nil
}

func (c *HTTPCatalog) validate(ctx context.Context, equipmentType, manufacturer, model string) (*domain.CatalogMatch, error) {
	start := time.Now()
	var out validateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(validateRequest{EquipmentType: equipmentType, Manufacturer: manufacturer, Model: model}).
		SetResult(&out).
		Post("/equipment/validate")
	if err != nil {
		metrics.ObserveCatalog("validate", "error", start)
		c.logger.Error("catalog validate request failed", zap.String("type", equipmentType), zap.Error(err))
		return nil, fmt.Errorf("failed to call catalog: %w", err)
	}
	metrics.ObserveCatalog("validate", strconv.Itoa(resp.StatusCode()), start)
	if resp.IsError() {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode())
	}

	match := &domain.CatalogMatch{Status: out.Status}
	if match.Status == "" {
		match.Status = "unmatched"
	}
	if out.Match != nil {
		eq := out.Match.toEquipment(equipmentType, manufacturer)
		if eq.Model == "" {
			eq.Model = model
		}
		match.Match = &eq
	}
	for _, s := range out.Suggestions {
		match.Suggestions = append(match.Suggestions, s.toEquipment(equipmentType, manufacturer))
	}
	return match, nil
}
