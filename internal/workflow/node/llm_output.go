// Package node 模型输出的通用处理
package node

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject 截取模型输出中的第一个 JSON 对象，兼容 ```json 代码块与前后说明文字。
// 找不到可解析的对象时返回去掉首尾空白的原文。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	start := strings.Index(raw, "{")
	if start < 0 {
		return raw
	}

	dec := json.NewDecoder(strings.NewReader(raw[start:]))
	dec.UseNumber()
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return raw
	}
	return string(obj)
}

var responseFormatHints = []string{
	"response_format",
	"json_object",
	"json_schema",
	"response_schema",
}

// IsResponseFormatUnsupportedError 判断提供商是否拒绝了 JSON 输出模式，调用方据此去掉该参数重试
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, h := range responseFormatHints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response")
}
