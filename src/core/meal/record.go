package meal

import "strings"

// Unknown 模型无法确定某个字段时返回的占位值
const Unknown = "None"

// MealRecord 从一张餐食图片中提取的结构化信息
type MealRecord struct {
	Name        string `json:"Name"`
	Origin      string `json:"Origin"`
	Where       string `json:"Where"`       // 最多5个地点，逗号分隔
	Information string `json:"Information"` // 不超过20个单词
}

// IsUnknown 判断字段是否为占位值（None、Unknown、N/A，大小写不敏感）
func IsUnknown(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "unknown", "n/a", "null":
		return true
	}
	return false
}

// Known 返回已确定（非占位值）的字段数量
func (r *MealRecord) Known() int {
	n := 0
	for _, v := range []string{r.Name, r.Origin, r.Where, r.Information} {
		if !IsUnknown(v) {
			n++
		}
	}
	return n
}

// Places 把 Where 拆分为地点列表，占位值返回空列表
func (r *MealRecord) Places() []string {
	if IsUnknown(r.Where) {
		return nil
	}
	var places []string
	for _, p := range strings.Split(r.Where, ",") {
		if p = strings.TrimSpace(p); p != "" {
			places = append(places, p)
		}
	}
	return places
}
