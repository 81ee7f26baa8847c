package repository

import (
	"bytes"
	"encoding/json"
	"io"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// normalizeRecord 数字统一为 float64/int64，和 JSON 往返后的形态一致
func normalizeRecord(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
			if f, err := n.Float64(); err == nil {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}
