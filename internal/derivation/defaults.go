package derivation

import "go.uber.org/zap"

// DefaultRules 设备表单的全部派生规则（顺序即同轮执行顺序）
func DefaultRules() []Rule {
	return []Rule{
		ACIntegratedPanelRule{},
		PowerWallBatteryRule{},
		NoBackupRule{},
		GatewayRule{},
		DaisyChainRule{},
		StringInverterQuantityRule{},
		MicroInverterQuantityRule{},
		ActivationRule{},
	}
}

// NewDefaultRuleSet 使用默认规则创建规则集，extra 追加在最后
func NewDefaultRuleSet(maxPasses int, logger *zap.Logger, extra ...Rule) *RuleSet {
	return NewRuleSet(maxPasses, logger, append(DefaultRules(), extra...)...)
}
