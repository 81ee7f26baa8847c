package service

import (
	"skyfire-equipment/internal/combine"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// ProjectView 项目配置快照（返回给客户端）
type ProjectView struct {
	ProjectID      string                 `json:"project_id"`
	Version        int64                  `json:"version"`
	Visible        []int                  `json:"visible"`
	Active         []int                  `json:"active"`
	Combine        domain.CombineDecision `json:"combine"`
	CombinePending bool                   `json:"combine_pending"`
	Globals        map[fieldmap.Field]any `json:"globals"`
	Subsystems     []SubsystemView        `json:"subsystems"`
	BOS            map[string]any         `json:"bos"`
	Unsaved        int                    `json:"unsaved"`
}

// SubsystemView 单个子系统的非空字段
type SubsystemView struct {
	Index  int                    `json:"index"`
	Active bool                   `json:"active"`
	Fields map[fieldmap.Field]any `json:"fields"`
}

func buildView(sess *session) *ProjectView {
	st := sess.state
	view := &ProjectView{
		ProjectID:      st.ProjectID(),
		Version:        st.Version(),
		Visible:        st.VisibleSubsystems(),
		Active:         st.ActiveSubsystems(),
		Combine:        combine.Decision(st),
		CombinePending: sess.combine.Pending(),
		Globals:        map[fieldmap.Field]any{},
		BOS:            map[string]any{},
		Unsaved:        len(sess.unsaved),
	}

	var perSubsystem []fieldmap.Field
	for _, f := range fieldmap.All() {
		if f == fieldmap.RuleProvenance {
			continue
		}
		if fieldmap.IsGlobal(f) {
			if v := st.Get(f, domain.GlobalIndex); !domain.IsEmpty(v) {
				view.Globals[f] = v
			}
			continue
		}
		perSubsystem = append(perSubsystem, f)
	}

	for _, n := range view.Visible {
		sv := SubsystemView{Index: n, Active: st.IsActive(n), Fields: map[fieldmap.Field]any{}}
		for _, f := range perSubsystem {
			if v := st.Get(f, n); !domain.IsEmpty(v) {
				sv.Fields[f] = v
			}
		}
		view.Subsystems = append(view.Subsystems, sv)
	}

	for k, v := range st.Record() {
		if fieldmap.IsSlotKey(k) && !domain.IsEmpty(v) {
			view.BOS[k] = v
		}
	}
	return view
}
