package utils

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractJSONObject 从模型回复中取出JSON对象
// 模型常把JSON包在 ```json ... ``` 代码块里，或在前后附带说明文字
func ExtractJSONObject(text string) string {
	text = strings.TrimSpace(text)

	if block, ok := fencedBlock(text); ok {
		if obj, found := firstJSONObject(block); found {
			return obj
		}
		return block
	}

	if json.Valid([]byte(text)) {
		return text
	}
	if obj, found := firstJSONObject(text); found {
		return obj
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// fencedBlock 返回第一个 ``` 代码块的内容，并去掉语言标识
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start == -1 {
		return "", false
	}
	rest := text[start+3:]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	block := strings.TrimSpace(rest[:end])
	if block == "" || strings.ContainsRune("{[", rune(block[0])) {
		return block, true
	}
	// 语言标识与内容之间可能是换行，也可能只有空格: ```json {...}```
	if i := strings.IndexFunc(block, unicode.IsSpace); i != -1 {
		return strings.TrimSpace(block[i:]), true
	}
	if strings.EqualFold(block, "json") {
		return "", true
	}
	return block, true
}

// firstJSONObject 依次从每个 { 开始尝试解码，返回第一个完整的JSON对象原文
// 说明文字中的花括号会解码失败并被跳过
func firstJSONObject(text string) (string, bool) {
	for offset := 0; offset < len(text); {
		i := strings.IndexByte(text[offset:], '{')
		if i == -1 {
			return "", false
		}
		start := offset + i
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return text[start : start+int(dec.InputOffset())], true
		}
		offset = start + 1
	}
	return "", false
}

// WordCount 按空白分词统计单词数
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Truncate 按字符截断，用于日志输出
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}
