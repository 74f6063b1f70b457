package llm

import "time"

// 以下辅助函数从工厂配置 map 中读取值，兼容 viper/yaml 解析出的数值类型。

// ConfigString 读取字符串配置，缺失或为空时返回 def。
func ConfigString(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ConfigFloat 读取浮点配置。
func ConfigFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// ConfigInt 读取整数配置。
func ConfigInt(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// ConfigDuration 读取时长配置，支持 time.Duration 和 "30s" 形式的字符串。
func ConfigDuration(m map[string]any, key string, def time.Duration) time.Duration {
	switch v := m[key].(type) {
	case time.Duration:
		if v > 0 {
			return v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
