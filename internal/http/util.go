package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// errBodyTooLarge 请求体超过上限
var errBodyTooLarge = errors.New("request body too large")

const maxPageSize = 100

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// pageParams 分页参数，非法值回落到默认值，size 不超过 maxPageSize
func pageParams(r *http.Request) (page, size int) {
	q := r.URL.Query()
	page, size = 1, 20
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil && v > 0 {
		size = min(v, maxPageSize)
	}
	return page, size
}

// readBodyJSON 多读一个字节判断是否超限，截断的请求体不交给 json 解析。
// 空请求体不是错误，out 保持零值。
func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > maxBytes {
		return fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, maxBytes)
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
