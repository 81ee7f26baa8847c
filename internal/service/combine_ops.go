package service

import (
	"context"

	"skyfire-equipment/internal/combine"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/notify"
)

// CombineResult 合并决定操作的结果
type CombineResult struct {
	Outcome combine.Outcome `json:"outcome"`
	*ChangeResult
}

func (s *ProjectService) combineStep(ctx context.Context, projectID string, step func(*session) (combine.Outcome, error)) (*CombineResult, error) {
	var res *CombineResult
	err := s.withSession(ctx, projectID, func(sess *session) error {
		out, err := step(sess)
		if err != nil {
			return err
		}
		res = &CombineResult{Outcome: out}
		if len(out.Updates) == 0 {
			res.ChangeResult = &ChangeResult{View: buildView(sess)}
			return nil
		}
		change, err := s.apply(ctx, sess, out.Updates, notify.EventConfigChanged)
		res.ChangeResult = change
		return err
	})
	return res, err
}

// RequestCombine 请求改变合并决定；从"合并"改为"不合并"且已配置并网位置时需要确认
func (s *ProjectService) RequestCombine(ctx context.Context, projectID string, choice domain.CombineDecision) (*CombineResult, error) {
	return s.combineStep(ctx, projectID, func(sess *session) (combine.Outcome, error) {
		return sess.combine.Request(sess.state, choice)
	})
}

// ConfirmCombine 确认待定的合并决定
func (s *ProjectService) ConfirmCombine(ctx context.Context, projectID string) (*CombineResult, error) {
	return s.combineStep(ctx, projectID, func(sess *session) (combine.Outcome, error) {
		return sess.combine.Confirm(sess.state)
	})
}

// CancelCombine 放弃待定的合并决定，状态不变
func (s *ProjectService) CancelCombine(ctx context.Context, projectID string) (*CombineResult, error) {
	return s.combineStep(ctx, projectID, func(sess *session) (combine.Outcome, error) {
		if !sess.combine.Cancel() {
			return combine.Outcome{}, domain.ErrNotFound
		}
		return combine.Outcome{Decision: combine.Decision(sess.state)}, nil
	})
}

// SetCombineLanding 设置各子系统的合并并网位置
func (s *ProjectService) SetCombineLanding(ctx context.Context, projectID string, positions map[int]string) (*CombineResult, error) {
	return s.combineStep(ctx, projectID, func(sess *session) (combine.Outcome, error) {
		return combine.SetLanding(sess.state, positions)
	})
}
