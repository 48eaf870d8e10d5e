// Package diagnose 将各类调用失败归一化为一条可直接展示的诊断文本
package diagnose

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// 固定的覆盖文案
const (
	MsgInsufficientBalance = "API 余额不足，请前往服务商控制台充值后重试。"
	MsgConnectivity        = "网络连接失败，请检查：1. 当前网络能否访问 AI 服务（部分地区需要代理）；2. Base URL 是否填写正确；3. 防火墙或浏览器插件是否拦截了请求。"
	MsgInvalidCredential   = "API Key 无效或没有访问权限（403），请检查密钥是否正确。"
	MsgInvalidEndpoint     = "模型名称或接口地址无效（404），请检查模型 ID 与 Base URL。"
	MsgUnknown             = "未知错误"
)

// maxUnwrapDepth 服务端有时把 JSON 错误再包进 message 字段
const maxUnwrapDepth = 3

// PayloadCarrier 携带原始失败内容的错误
type PayloadCarrier interface {
	RawPayload() string
}

type rule struct {
	patterns []string
	message  string
}

// rules 按优先级排列，先匹配者生效
var rules = []rule{
	{
		patterns: []string{"insufficient balance", "insufficient_balance", "余额不足"},
		message:  MsgInsufficientBalance,
	},
	{
		patterns: []string{
			"failed to fetch", "fetch failed", "networkerror", "network error",
			"rpc failed", "rpc error", "xhr error",
			"connection refused", "connection reset", "no such host", "dial tcp",
			"i/o timeout", "tls handshake", "context deadline exceeded", "client.timeout exceeded",
		},
		message: MsgConnectivity,
	},
	{
		patterns: []string{"403", "api key not valid", "invalid api key", "incorrect api key"},
		message:  MsgInvalidCredential,
	},
	{
		patterns: []string{"404", "not found for api version"},
		message:  MsgInvalidEndpoint,
	},
}

// Message 返回失败值的诊断文本；对任何输入都不会 panic，也不会返回空串
func Message(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fallback(v)
		}
	}()

	raw := unwrapJSON(rawMessage(v))
	if msg, ok := override(raw); ok {
		return msg
	}
	if strings.TrimSpace(raw) == "" {
		return fallback(v)
	}
	return raw
}

// rawMessage 提取原始消息
func rawMessage(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case error:
		var pc PayloadCarrier
		if errors.As(t, &pc) {
			return pc.RawPayload()
		}
		return t.Error()
	case map[string]any:
		if msg, ok := nestedMessage(t); ok {
			return msg
		}
		return stringify(t)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		var m map[string]any
		if json.Unmarshal(b, &m) == nil {
			if msg, ok := nestedMessage(m); ok {
				return msg
			}
		}
		return string(b)
	}
}

// nestedMessage 依次查找 error.message、error（字符串）、message
func nestedMessage(m map[string]any) (string, bool) {
	switch e := m["error"].(type) {
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg, true
		}
	case string:
		if e != "" {
			return e, true
		}
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg, true
	}
	return "", false
}

// unwrapJSON 截取首个 { 到最后一个 } 之间的内容尝试解析，失败时原样返回
func unwrapJSON(raw string) string {
	for i := 0; i < maxUnwrapDepth; i++ {
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "{") && !strings.Contains(raw, `{"error"`) {
			return raw
		}
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return raw
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw[start:end+1]), &m); err != nil {
			return raw
		}
		msg, ok := nestedMessage(m)
		if !ok || msg == raw {
			return raw
		}
		raw = msg
	}
	return raw
}

func override(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(lower, p) {
				return r.message, true
			}
		}
	}
	return "", false
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func fallback(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = MsgUnknown
		}
	}()
	if v == nil {
		return MsgUnknown
	}
	s = strings.TrimSpace(fmt.Sprint(v))
	if s == "" || s == "<nil>" || s == "{}" || s == "map[]" {
		return MsgUnknown
	}
	return s
}
