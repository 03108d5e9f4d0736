package meal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
)

// ParseMealRecord 把模型回复解析为 MealRecord
// 非法JSON或缺少字段时返回 ErrSchemaParse；None/Unknown 等占位值视为有效
func ParseMealRecord(text string) (*MealRecord, error) {
	content := utils.ExtractJSONObject(text)
	if content == "" {
		return nil, fmt.Errorf("%w: 模型回复为空", types.ErrSchemaParse)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: 回复不是合法的JSON对象: %v", types.ErrSchemaParse, err)
	}

	folded := make(map[string][]string, len(raw))
	for k := range raw {
		lower := strings.ToLower(k)
		folded[lower] = append(folded[lower], k)
	}

	values := make(map[string]string, len(FieldNames))
	var missing []string
	for _, name := range FieldNames {
		value, ok, err := lookupField(raw, folded, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		s, err := decodeField(value)
		if err != nil {
			return nil, fmt.Errorf("%w: 字段 %s: %v", types.ErrSchemaParse, name, err)
		}
		values[name] = s
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: 缺少必需字段: %s", types.ErrSchemaParse, strings.Join(missing, ", "))
	}

	return &MealRecord{
		Name:        values["Name"],
		Origin:      values["Origin"],
		Where:       values["Where"],
		Information: values["Information"],
	}, nil
}

// lookupField 先按精确字段名查找，再按忽略大小写匹配
// 忽略大小写后命中多个键且没有精确匹配时返回错误
func lookupField(raw map[string]json.RawMessage, folded map[string][]string, name string) (json.RawMessage, bool, error) {
	if value, ok := raw[name]; ok {
		return value, true, nil
	}
	keys := folded[strings.ToLower(name)]
	switch len(keys) {
	case 0:
		return nil, false, nil
	case 1:
		return raw[keys[0]], true, nil
	default:
		sort.Strings(keys)
		return nil, false, fmt.Errorf("%w: 字段 %s 存在多个大小写不同的键: %s", types.ErrSchemaParse, name, strings.Join(keys, ", "))
	}
}

// decodeField 字段允许为字符串、null 或字符串数组（Where 常被返回为数组）
func decodeField(value json.RawMessage) (string, error) {
	value = bytes.TrimSpace(value)
	if bytes.Equal(value, []byte("null")) {
		return Unknown, nil
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return Unknown, nil
		}
		return s, nil
	}

	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		var items []string
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return Unknown, nil
		}
		return strings.Join(items, ", "), nil
	}

	return "", fmt.Errorf("期望字符串, 实际为 %s", utils.Truncate(string(value), 40))
}
