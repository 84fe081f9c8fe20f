// Package aicache 提供按内容寻址的 AI 响应缓存
package aicache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"storyloom-ai-api/internal/domain/entity"
)

// MaxFieldRunes 参与摘要计算的单个字符串字段最大长度
const MaxFieldRunes = 500

const keyPrefix = "aicache"

// Key 计算 (kind, payload) 的缓存键与请求摘要
// 键格式：aicache:<kind>:<sha256 hex>
func Key(kind entity.AIKind, payload any) (key string, digest string, err error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256(canonical)
	digest = hex.EncodeToString(sum[:])
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, digest), digest, nil
}

// Canonicalize 将 payload 规范化为稳定的 JSON：
// 对象键有序，字符串截断到 MaxFieldRunes 个字符，数字保持原始字面量
func Canonicalize(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode cache payload: %w", err)
	}

	// encoding/json 对 map 键排序输出
	out, err := json.Marshal(normalize(generic))
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical payload: %w", err)
	}
	return out, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	case string:
		return truncateRunes(t, MaxFieldRunes)
	default:
		return v
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
