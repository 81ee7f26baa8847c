package bos

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"skyfire-equipment/internal/combine"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// Source 检测所需的只读配置视图（ConfigState 实现）
type Source interface {
	Get(field fieldmap.Field, subsystem int) any
	String(field fieldmap.Field, subsystem int) string
	Int(field fieldmap.Field, subsystem int) int
	Float(field fieldmap.Field, subsystem int) float64
	ActiveSubsystems() []int
}

// CatalogLookup 设备目录查询
type CatalogLookup interface {
	FindEquipment(ctx context.Context, equipmentType, manufacturer, model string) (*domain.CatalogMatch, error)
}

// RequirementsLookup 公用事业需求表查询（回退来源）
type RequirementsLookup interface {
	Get(ctx context.Context, utility string) ([]domain.UtilityRequirement, error)
}

// 检测结果来源
const (
	SourceUtilitySpecialCase = "utility-special-case"
	SourceHardcoded          = "hardcoded"
	SourceDatabaseFallback   = "database-fallback"
	SourceNone               = "none"
)

// POIAnswer 调用方对 POI 询问的回答
type POIAnswer struct {
	Subsystem   int    `json:"subsystem" validate:"min=1,max=4"`
	POIType     string `json:"poi_type"`
	POILocation string `json:"poi_location"`
	Cancel      bool   `json:"cancel"`
}

// POIRequest 检测挂起，等待调用方提供并网方式
// 类型和位置都必须有值，已有的值随请求带回供界面预填。
type POIRequest struct {
	Subsystem   int      `json:"subsystem"`
	Utility     string   `json:"utility"`
	Options     []string `json:"options"`
	POIType     string   `json:"poi_type,omitempty"`
	POILocation string   `json:"poi_location,omitempty"`
	Missing     []string `json:"missing"`
}

// Result 一次检测的结果（由调用方决定接受或丢弃）
type Result struct {
	Items      []domain.BOSItem `json:"items"`
	Summary    string           `json:"summary"`
	Source     string           `json:"source"`
	NeedsInput *POIRequest      `json:"needs_input,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	// Answers 本次使用的 POI 回答（调用方可据此持久化）
	Answers []POIAnswer `json:"answers,omitempty"`
}

// Suspended 是否在等待 POI 输入
func (r *Result) Suspended() bool { return r != nil && r.NeedsInput != nil }

// Engine BOS 检测引擎。不写入任何状态，只读 Source 和协作方。
type Engine struct {
	configs      *UtilityConfigs
	resolver     *Resolver
	requirements RequirementsLookup
	logger       *zap.Logger
}

// NewEngine 创建检测引擎
func NewEngine(configs *UtilityConfigs, catalog CatalogLookup, requirements RequirementsLookup, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		configs:      configs,
		resolver:     NewResolver(catalog, DefaultResolveConcurrency, logger),
		requirements: requirements,
		logger:       logger,
	}
}

// Detect 检测 BOS 设备
// 顺序：公用事业特例 → 通用触发表（硬编码配置）→ 需求表回退。
// 特例需要 POI 而 Source 和 answers 都没有时返回 NeedsInput；
// answers 中对应子系统 Cancel 为 true 时返回 ErrUserCancelled。
func (e *Engine) Detect(ctx context.Context, src Source, answers []POIAnswer) (*Result, error) {
	utility := src.String(fieldmap.Utility, domain.GlobalIndex)

	if IsOncorOrXcel(utility) {
		res, err := e.detectSpecialCase(src, utility, answers)
		if err != nil || res.Suspended() {
			return res, err
		}
		e.resolve(ctx, res)
		e.logResult(utility, res)
		return res, nil
	}

	res := &Result{Source: SourceHardcoded}
	res.Items = e.detectTriggered(src, utility)
	if len(res.Items) == 0 && utility != "" && e.requirements != nil {
		res.Source = SourceDatabaseFallback
		items, err := e.detectFallback(ctx, src, utility, answers)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
		res.Items = items
	}
	if len(res.Items) == 0 {
		res.Source = SourceNone
	}
	res.Summary = summarize(utility, res)
	e.resolve(ctx, res)
	e.logResult(utility, res)
	return res, nil
}

func (e *Engine) logResult(utility string, res *Result) {
	e.logger.Info("bos detection finished",
		zap.String("utility", utility),
		zap.String("source", res.Source),
		zap.Int("items", len(res.Items)),
		zap.Int("warnings", len(res.Warnings)),
	)
}

// specialCaseSystems 合并时只处理 1 号（合并后的并网点）
func specialCaseSystems(src Source) []int {
	if combine.Decision(src) == domain.CombineYes {
		return []int{1}
	}
	return src.ActiveSubsystems()
}

func answerFor(answers []POIAnswer, n int) (POIAnswer, bool) {
	for _, a := range answers {
		if a.Subsystem == n {
			return a, true
		}
	}
	return POIAnswer{}, false
}

// missingPOI 未填写的 POI 字段
func missingPOI(poiType, poiLocation string) []string {
	var missing []string
	if poiType == "" {
		missing = append(missing, string(fieldmap.POIType))
	}
	if poiLocation == "" {
		missing = append(missing, string(fieldmap.POILocation))
	}
	return missing
}

func (e *Engine) detectSpecialCase(src Source, utility string, answers []POIAnswer) (*Result, error) {
	res := &Result{Source: SourceUtilitySpecialCase}
	var lines []string
	for _, n := range specialCaseSystems(src) {
		poiType := strings.TrimSpace(src.String(fieldmap.POIType, n))
		poiLocation := strings.TrimSpace(src.String(fieldmap.POILocation, n))
		if a, ok := answerFor(answers, n); ok {
			if a.Cancel {
				e.logger.Info("poi prompt cancelled", zap.Int("subsystem", n))
				return nil, fmt.Errorf("%w: poi prompt for subsystem %d", domain.ErrUserCancelled, n)
			}
			a.POIType = strings.TrimSpace(a.POIType)
			a.POILocation = strings.TrimSpace(a.POILocation)
			if a.POIType != "" {
				poiType = a.POIType
			}
			if a.POILocation != "" {
				poiLocation = a.POILocation
			}
			if a.POIType != "" || a.POILocation != "" {
				res.Answers = append(res.Answers, a)
			}
		}
		if missing := missingPOI(poiType, poiLocation); len(missing) > 0 {
			e.logger.Debug("poi incomplete, suspending detection",
				zap.Int("subsystem", n),
				zap.Strings("missing", missing),
			)
			return &Result{
				Source: SourceUtilitySpecialCase,
				NeedsInput: &POIRequest{
					Subsystem:   n,
					Utility:     utility,
					Options:     append([]string(nil), POITypes...),
					POIType:     poiType,
					POILocation: poiLocation,
					Missing:     missing,
				},
			}, nil
		}

		disconnect := DisconnectTypeForPOI(poiType)
		amps, note := InverterSizing(src, n)
		res.Items = append(res.Items, domain.BOSItem{
			EquipmentType: disconnect,
			StandardType:  disconnect,
			Section:       domain.SectionPostSMS,
			Target:        n,
			Confidence:    domain.ConfidenceUtilityRequired,
			Order:         1,
			Required:      true,
			IsNew:         true,
			MinAmpRating:  amps,
			SizingNote:    note,
		})
		lines = append(lines, fmt.Sprintf("System %d: %s", n, disconnect))
	}
	res.Summary = fmt.Sprintf("%s - AC Disconnect Requirement\n\n%s", utility, strings.Join(lines, "\n"))
	return res, nil
}

// trigger 通用触发条件
type trigger struct {
	section  domain.Section
	combined bool
	holds    func(src Source, n int) bool
}

func hasMakeModel(src Source, makeField, modelField fieldmap.Field, n int) bool {
	return src.String(makeField, n) != "" && src.String(modelField, n) != ""
}

var triggers = []trigger{
	{section: domain.SectionUtility, holds: func(src Source, n int) bool {
		return hasMakeModel(src, fieldmap.CombinerPanelMake, fieldmap.CombinerPanelModel, n) ||
			hasMakeModel(src, fieldmap.InverterMake, fieldmap.InverterModel, n)
	}},
	{section: domain.SectionBattery1, holds: func(src Source, n int) bool {
		return src.Int(fieldmap.Battery1Quantity, n) > 0
	}},
	{section: domain.SectionBattery2, holds: func(src Source, n int) bool {
		return src.Int(fieldmap.Battery2Quantity, n) > 0
	}},
	{section: domain.SectionBackup, holds: func(src Source, n int) bool {
		switch src.String(fieldmap.BackupOption, n) {
		case "Whole Home", "Partial Home":
			return true
		}
		return false
	}},
	{section: domain.SectionPostSMS, holds: func(src Source, n int) bool {
		return hasMakeModel(src, fieldmap.SMSMake, fieldmap.SMSModel, n)
	}},
	{section: domain.SectionCombine, combined: true, holds: func(src Source, _ int) bool {
		return len(src.ActiveSubsystems()) >= 2
	}},
}

func (e *Engine) detectTriggered(src Source, utility string) []domain.BOSItem {
	if e.configs == nil {
		return nil
	}
	cfg, ok := e.configs.Lookup(utility)
	if !ok {
		return nil
	}
	active := src.ActiveSubsystems()
	var items []domain.BOSItem
	for _, t := range triggers {
		reqs := cfg.ForSection(t.section)
		if len(reqs) == 0 {
			continue
		}
		targets := active
		if t.combined {
			targets = []int{domain.CombinedTarget}
		}
		for _, n := range targets {
			if !t.holds(src, n) {
				continue
			}
			for _, r := range reqs {
				items = append(items, itemFromRequirement(src, r, t.section, n, active))
			}
		}
	}
	return items
}

func itemFromRequirement(src Source, r Requirement, section domain.Section, n int, active []int) domain.BOSItem {
	item := domain.BOSItem{
		EquipmentType: r.EquipmentType,
		StandardType:  r.StandardType,
		Section:       section,
		Target:        n,
		Confidence:    domain.ConfidenceHardcoded,
		Order:         r.Order,
		Required:      r.Required,
		IsNew:         true,
		PreferredMake: r.PreferredMake,
	}
	switch r.AmpSizing {
	case SizingFixed:
		item.MinAmpRating = ParseAmp(r.FixedAmp)
		item.SizingNote = "fixed " + r.FixedAmp
	case SizingInverter:
		if n == domain.CombinedTarget {
			item.MinAmpRating, item.SizingNote = CombinedInverterSizing(src, active)
		} else {
			item.MinAmpRating, item.SizingNote = InverterSizing(src, n)
		}
	default:
		item.MinAmpRating = defaultMinAmps
		item.SizingNote = r.AmpSizing + " sizing not tracked, default 30A"
	}
	return item
}

// detectFallback 需求表回退，条目统一落在 1 号子系统
func (e *Engine) detectFallback(ctx context.Context, src Source, utility string, answers []POIAnswer) ([]domain.BOSItem, error) {
	reqs, err := e.requirements.Get(ctx, utility)
	if err != nil {
		e.logger.Warn("utility requirements unavailable", zap.String("utility", utility), zap.Error(err))
		return nil, fmt.Errorf("%w: utility requirements for %q: %v", domain.ErrCatalogLookupFailure, utility, err)
	}
	poiType := src.String(fieldmap.POIType, 1)
	if a, ok := answerFor(answers, 1); ok && strings.TrimSpace(a.POIType) != "" {
		poiType = strings.TrimSpace(a.POIType)
	}
	amps, note := InverterSizing(src, 1)

	items := make([]domain.BOSItem, 0, len(reqs))
	for _, r := range reqs {
		standard := r.StandardType
		if r.RequiresPOICheck {
			standard = ResolveEquipmentTypeByPOI(r.EquipmentType, poiType)
		}
		if standard == "" {
			standard = NormalizeEquipmentType(r.EquipmentType)
		}
		item := domain.BOSItem{
			EquipmentType: r.EquipmentType,
			StandardType:  standard,
			Section:       domain.SectionUtility,
			Target:        1,
			Confidence:    domain.ConfidenceDatabaseFallback,
			Order:         r.Order,
			Required:      true,
			IsNew:         true,
		}
		if strings.Contains(strings.ToLower(standard), "disconnect") {
			item.MinAmpRating, item.SizingNote = amps, note
		}
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) resolve(ctx context.Context, res *Result) {
	if len(res.Items) == 0 {
		return
	}
	res.Warnings = append(res.Warnings, e.resolver.Resolve(ctx, res.Items)...)
}

func summarize(utility string, res *Result) string {
	if len(res.Items) == 0 {
		if utility == "" {
			return "No utility selected; no BOS requirements detected"
		}
		return fmt.Sprintf("%s - no BOS requirements detected", utility)
	}
	var b strings.Builder
	title := utility
	if title == "" {
		title = "Project"
	}
	fmt.Fprintf(&b, "%s - BOS Requirements (%s)\n", title, res.Source)
	for _, it := range res.Items {
		target := fmt.Sprintf("System %d", it.Target)
		if it.Target == domain.CombinedTarget {
			target = "Combined"
		}
		fmt.Fprintf(&b, "\n%s [%s] %d. %s", target, it.Section, it.Order, it.EquipmentType)
		if it.MinAmpRating > 0 {
			fmt.Fprintf(&b, " (min %dA)", it.MinAmpRating)
		}
	}
	return b.String()
}
