package bos

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"skyfire-equipment/internal/domain"
)

// DefaultResolveConcurrency 并发目录查询数
const DefaultResolveConcurrency = 4

// Resolver 把 BOS 条目解析为目录中的具体型号
type Resolver struct {
	catalog     CatalogLookup
	concurrency int
	logger      *zap.Logger
}

// NewResolver 创建解析器；catalog 为 nil 时所有条目保持未解析
func NewResolver(catalog CatalogLookup, concurrency int, logger *zap.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultResolveConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{catalog: catalog, concurrency: concurrency, logger: logger}
}

// Resolve 原地解析 items，返回按条目顺序排列的告警
// 查询失败的条目保留为未解析，不会被丢弃。
func (r *Resolver) Resolve(ctx context.Context, items []domain.BOSItem) []string {
	if r.catalog == nil {
		return nil
	}
	warnings := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := r.resolveOne(gctx, &items[i]); err != nil {
				r.logger.Warn("catalog lookup failed",
					zap.String("equipment_type", items[i].StandardType),
					zap.Error(err),
				)
				warnings[i] = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for _, w := range warnings {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, item *domain.BOSItem) error {
	equipmentType := item.StandardType
	if equipmentType == "" {
		equipmentType = item.EquipmentType
	}
	match, err := r.catalog.FindEquipment(ctx, equipmentType, item.PreferredMake, "")
	if err != nil {
		item.Resolved = false
		item.Note = "catalog unavailable"
		return fmt.Errorf("%w: %s: %v", domain.ErrCatalogLookupFailure, equipmentType, err)
	}
	if match.Matched() {
		apply(item, *match.Match)
		return nil
	}
	if pick, ok := PickByRating(candidates(match), item.PreferredMake, item.MinAmpRating); ok {
		apply(item, pick)
		return nil
	}
	item.Note = "no catalog match"
	return nil
}

func candidates(m *domain.CatalogMatch) []domain.CatalogEquipment {
	if m == nil {
		return nil
	}
	return m.Suggestions
}

func apply(item *domain.BOSItem, eq domain.CatalogEquipment) {
	item.Make = eq.Manufacturer
	item.Model = eq.Model
	item.AmpRating = eq.AmpRating
	item.Resolved = true
	item.Note = ""
}

// PickByRating 选择额定电流不低于 minAmps 的最小规格（优先首选品牌）
func PickByRating(options []domain.CatalogEquipment, preferredMake string, minAmps int) (domain.CatalogEquipment, bool) {
	pool := options
	if preferredMake != "" {
		var preferred []domain.CatalogEquipment
		for _, o := range options {
			if strings.EqualFold(o.Manufacturer, preferredMake) {
				preferred = append(preferred, o)
			}
		}
		if len(preferred) > 0 {
			pool = preferred
		}
	}
	var fit []domain.CatalogEquipment
	for _, o := range pool {
		if o.AmpRating >= float64(minAmps) {
			fit = append(fit, o)
		}
	}
	if len(fit) == 0 {
		return domain.CatalogEquipment{}, false
	}
	sort.SliceStable(fit, func(i, j int) bool {
		if fit[i].AmpRating != fit[j].AmpRating {
			return fit[i].AmpRating < fit[j].AmpRating
		}
		return fit[i].Model < fit[j].Model
	})
	return fit[0], true
}
