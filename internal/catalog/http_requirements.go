package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/metrics"
)

type requirementsResponse struct {
	Data []bos.RequirementRow `json:"data"`
}

// HTTPUtilityRequirements 公用事业需求表 API 客户端
type HTTPUtilityRequirements struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewHTTPUtilityRequirements(opts Options, logger *zap.Logger) *HTTPUtilityRequirements {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPUtilityRequirements{
		httpClient: newRestyClient(opts),
		limiter:    newLimiter(opts),
		logger:     logger,
	}
}

// Get 先按解析出的缩写查询，没有结果且缩写不同于原名时再按原名查询
func (c *HTTPUtilityRequirements) Get(ctx context.Context, utility string) ([]domain.UtilityRequirement, error) {
	abbrev := bos.ResolveUtilityAbbrev(utility)
	if abbrev == "" {
		return nil, nil
	}
	rows, err := c.fetch(ctx, abbrev)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && abbrev != utility {
		c.logger.Debug("no requirements for abbreviation, trying original name",
			zap.String("abbrev", abbrev),
			zap.String("utility", utility),
		)
		if rows, err = c.fetch(ctx, utility); err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		c.logger.Info("no utility requirements found", zap.String("utility", utility), zap.String("abbrev", abbrev))
		return nil, nil
	}
	return bos.ParseRequirements(rows[0]), nil
}

func (c *HTTPUtilityRequirements) fetch(ctx context.Context, abbrev string) ([]bos.RequirementRow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	var out requirementsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("abbrev", abbrev).
		SetResult(&out).
		Get("/equipment/utility-requirements")
	if err != nil {
		metrics.ObserveCatalog("utility_requirements", "error", start)
		c.logger.Error("utility requirements request failed", zap.String("abbrev", abbrev), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch utility requirements: %w", err)
	}
	metrics.ObserveCatalog("utility_requirements", strconv.Itoa(resp.StatusCode()), start)
	if resp.IsError() {
		return nil, fmt.Errorf("utility requirements returned status %d", resp.StatusCode())
	}
	return out.Data, nil
}
