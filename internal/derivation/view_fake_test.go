package derivation

import (
	"strings"

	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// fakeView 基于 map 的内存状态，用于规则测试
type fakeView struct {
	vals map[Ref]any
	prov map[Ref]string
}

func newFakeView() *fakeView {
	return &fakeView{vals: map[Ref]any{}, prov: map[Ref]string{}}
}

func (f *fakeView) Get(field fieldmap.Field, n int) any { return f.vals[Ref{field, n}] }

func (f *fakeView) String(field fieldmap.Field, n int) string {
	return strings.TrimSpace(domain.AsString(f.Get(field, n)))
}

func (f *fakeView) Int(field fieldmap.Field, n int) int { return domain.AsInt(f.Get(field, n)) }

func (f *fakeView) WrittenBy(field fieldmap.Field, n int) string { return f.prov[Ref{field, n}] }

func (f *fakeView) ActiveSubsystems() []int {
	var out []int
	for n := 1; n <= domain.MaxSubsystems; n++ {
		if f.String(fieldmap.SolarPanelMake, n) != "" || f.String(fieldmap.InverterMake, n) != "" {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeView) apply(rule string, w Write) (Change, bool) {
	old := f.vals[w.Ref]
	if domain.Equal(old, w.Value) {
		return Change{}, false
	}
	f.vals[w.Ref] = w.Value
	if w.Track {
		f.prov[w.Ref] = rule
	} else {
		delete(f.prov, w.Ref)
	}
	return Change{Ref: w.Ref, Old: old, New: w.Value}, true
}

// user 模拟用户写入，返回生效的变更
func (f *fakeView) user(changes *[]Change, field fieldmap.Field, n int, value any) {
	if ch, ok := f.apply("", Set(field, n, value)); ok {
		*changes = append(*changes, ch)
	}
}
