package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const apiPrefix = "/equipment/api/v1"

// apiClient 设备配置服务 HTTP 客户端
type apiClient struct {
	http *resty.Client
}

// envelope 服务端统一响应包
type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &apiClient{http: c}
}

// call 发送请求并返回 result 字段；type=warning 时 warnings 非空
func (c *apiClient) call(method, path string, body any) (json.RawMessage, string, error) {
	var env envelope
	req := c.http.R().SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, apiPrefix+path)
	if err != nil {
		return nil, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() || env.Code != 2000 {
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return env.Result, "", fmt.Errorf("%s %s: %s", method, path, msg)
	}
	var warning string
	if env.Type == "warning" {
		warning = env.Message
	}
	return env.Result, warning, nil
}

// download 请求二进制内容（导出）
func (c *apiClient) download(path string, body any) ([]byte, error) {
	resp, err := c.http.R().SetBody(body).Post(apiPrefix + path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("POST %s: %s", path, resp.Status())
	}
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("export not produced: %s", string(env.Result))
	}
	return resp.Body(), nil
}

// parseAssignments 解析 field[@n]=value 形式的参数
func parseAssignments(args []string) ([]map[string]any, error) {
	var updates []map[string]any
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected field[@subsystem]=value", arg)
		}
		subsystem := 0
		if field, idx, found := strings.Cut(name, "@"); found {
			if _, err := fmt.Sscanf(idx, "%d", &subsystem); err != nil {
				return nil, fmt.Errorf("invalid subsystem in %q", arg)
			}
			name = field
		}
		var value any = raw
		if raw == "" || raw == "null" {
			value = nil
		}
		updates = append(updates, map[string]any{"field": name, "subsystem": subsystem, "value": value})
	}
	return updates, nil
}
