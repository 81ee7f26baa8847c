package state

import (
	"sort"

	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/fieldmap"
)

// Update 一次字段写入请求
// Key 非空时直接写 BOS 槽位键（不经过逻辑字段映射，也不触发派生）。
type Update struct {
	Field     fieldmap.Field `json:"field"`
	Subsystem int            `json:"subsystem"`
	Value     any            `json:"value"`
	Key       string         `json:"key,omitempty"`
}

// MappingMiss 未映射的字段（已丢弃）
type MappingMiss struct {
	Field     string `json:"field"`
	Subsystem int    `json:"subsystem"`
}

// Batch 一次批量写入的结果，Writes 作为一个持久化单元提交
type Batch struct {
	ID      string              `json:"id"`
	Version int64               `json:"version"`
	Writes  map[string]any      `json:"writes"`
	Changes []derivation.Change `json:"-"`
	Toggles []string            `json:"toggles,omitempty"`
	Misses  []MappingMiss       `json:"misses,omitempty"`
	Passes  int                 `json:"passes"`
}

// Empty 没有需要持久化的写入
func (b *Batch) Empty() bool {
	return b == nil || len(b.Writes) == 0
}

// Keys 写入的持久化键（排序）
func (b *Batch) Keys() []string {
	if b == nil {
		return nil
	}
	keys := make([]string, 0, len(b.Writes))
	for k := range b.Writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Changed 本批次中该字段是否发生了变化
func (b *Batch) Changed(field fieldmap.Field, subsystem int) bool {
	for _, c := range b.Changes {
		if c.Field == field && c.Subsystem == subsystem {
			return true
		}
	}
	return false
}

type batchBuilder struct {
	writes  map[string]any
	changes []derivation.Change
	toggles []string
	misses  []MappingMiss
	passes  int
}

func newBatchBuilder() *batchBuilder {
	return &batchBuilder{writes: map[string]any{}}
}
