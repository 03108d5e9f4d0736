package meal

import (
	"strings"
	"testing"

	"mealchat-server-go/src/core/types"
)

var testImage = ImageRef{DataURI: "data:image/jpeg;base64,/9j/AAAA", Detail: "low"}

func allText(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func TestBuildMessages_Extraction(t *testing.T) {
	messages := BuildMessages(ExtractionRequest{Image: testImage})
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if messages[0].Role != types.RoleSystem || messages[1].Role != types.RoleUser {
		t.Errorf("roles = %s, %s", messages[0].Role, messages[1].Role)
	}
	if !strings.Contains(messages[0].Text(), "return None") {
		t.Errorf("系统指令应要求无法确定时返回 None: %q", messages[0].Text())
	}

	text := allText(messages)
	for _, field := range FieldNames {
		if !strings.Contains(text, `"`+field+`"`) {
			t.Errorf("缺少字段名 %s", field)
		}
	}
	for _, constraint := range []string{"up to 5 places", "within 20 words"} {
		if !strings.Contains(text, constraint) {
			t.Errorf("缺少约束说明 %q", constraint)
		}
	}

	images := messages[1].Images()
	if len(images) != 1 || images[0] != testImage.DataURI {
		t.Errorf("images = %v", images)
	}
	last := messages[1].Parts[len(messages[1].Parts)-1]
	if last.Detail != "low" {
		t.Errorf("detail = %q, want low", last.Detail)
	}
}

func TestBuildMessages_Question(t *testing.T) {
	questions := []string{
		"Is this dish spicy?",
		"  what wine goes with it?  ",
		"你好，这道菜辣吗？",
	}
	for _, q := range questions {
		messages := BuildMessages(QuestionRequest{Image: testImage, Question: q})
		if len(messages) != 2 {
			t.Fatalf("len(messages) = %d, want 2", len(messages))
		}
		text := allText(messages)
		if !strings.Contains(text, q) {
			t.Errorf("问题原文缺失: %q", q)
		}
		if strings.Contains(text, FormatInstructions()) || strings.Contains(text, "JSON schema") {
			t.Errorf("问答模式不应包含输出格式说明")
		}
		for _, constraint := range []string{"up to 5 places", "within 20 words"} {
			if strings.Contains(text, constraint) {
				t.Errorf("问答模式不应包含约束 %q", constraint)
			}
		}
		if !strings.Contains(messages[0].Text(), "less than 50 words") {
			t.Errorf("系统指令应限制回答长度")
		}
		// 图片在问题之前
		if messages[1].Parts[0].Type != types.PartTypeImageURL {
			t.Errorf("第一段应为图片")
		}
	}
}

func TestRequestModes(t *testing.T) {
	var req Request = ExtractionRequest{}
	if req.Mode() != ModeExtraction {
		t.Errorf("ExtractionRequest.Mode() = %s", req.Mode())
	}
	req = QuestionRequest{Question: "?"}
	if req.Mode() != ModeQuestion {
		t.Errorf("QuestionRequest.Mode() = %s", req.Mode())
	}
}
