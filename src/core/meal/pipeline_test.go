package meal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/image"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
)

// fakeInvoker 返回固定回复并记录收到的消息
type fakeInvoker struct {
	reply    string
	err      error
	calls    int
	messages []types.Message
}

func (f *fakeInvoker) Invoke(ctx context.Context, messages []types.Message) (*types.ModelReply, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &types.ModelReply{Content: f.reply, Usage: types.Usage{PromptTokens: 100, CompletionTokens: 20}}, nil
}

const noodleReply = `{"Name":"Pad Thai","Origin":"Asian","Where":"Thai Street Kitchen, Bangkok Bistro","Information":"Stir-fried rice noodles with egg, shrimp, tofu, peanuts."}`

func newTestPipeline(t *testing.T, invoker types.VisionInvoker) (*Pipeline, string) {
	t.Helper()
	logger := utils.NewWriterLogger(io.Discard, "debug")

	v := configs.VLLMConfig{}
	v.ApplyDefaults()
	dir := t.TempDir()
	processor, err := image.NewImageProcessor(&v.Security, dir, logger)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, 16, 16)), nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "noodles.jpeg")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	return NewPipeline(processor, invoker, v.Detail, logger), path
}

func TestPipeline_Extract(t *testing.T) {
	invoker := &fakeInvoker{reply: noodleReply}
	p, path := newTestPipeline(t, invoker)

	record, err := p.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want, _ := ParseMealRecord(noodleReply)
	if *record != *want {
		t.Errorf("Extract() = %+v, want %+v", record, want)
	}

	if invoker.calls != 1 {
		t.Errorf("calls = %d, want 1", invoker.calls)
	}
	images := invoker.messages[1].Images()
	if len(images) != 1 {
		t.Fatalf("images = %v", images)
	}
	format, data, err := image.SplitDataURI(images[0])
	if err != nil || format != "jpeg" {
		t.Fatalf("SplitDataURI = %q, %v", format, err)
	}
	raw, _ := os.ReadFile(path)
	decoded, err := image.Decode(data)
	if err != nil || !bytes.Equal(decoded, raw) {
		t.Error("请求中的图片应与原文件一致")
	}
}

func TestPipeline_ExtractSchemaMismatch(t *testing.T) {
	p, path := newTestPipeline(t, &fakeInvoker{reply: `{"Name":"Pad Thai"}`})
	if _, err := p.Extract(context.Background(), path); !errors.Is(err, types.ErrSchemaParse) {
		t.Errorf("err = %v, want ErrSchemaParse", err)
	}
}

func TestPipeline_ExtractMissingFile(t *testing.T) {
	invoker := &fakeInvoker{reply: noodleReply}
	p, path := newTestPipeline(t, invoker)

	if _, err := p.Extract(context.Background(), path+".missing"); !errors.Is(err, types.ErrFileAccess) {
		t.Errorf("err = %v, want ErrFileAccess", err)
	}
	if invoker.calls != 0 {
		t.Error("读取失败时不应调用模型")
	}
}

func TestPipeline_RemoteError(t *testing.T) {
	invoker := &fakeInvoker{err: fmt.Errorf("%w: 401 unauthorized", types.ErrRemoteInvocation)}
	p, path := newTestPipeline(t, invoker)

	if _, err := p.Extract(context.Background(), path); !errors.Is(err, types.ErrRemoteInvocation) {
		t.Errorf("Extract err = %v, want ErrRemoteInvocation", err)
	}
	if _, err := p.Ask(context.Background(), path, "spicy?"); !errors.Is(err, types.ErrRemoteInvocation) {
		t.Errorf("Ask err = %v, want ErrRemoteInvocation", err)
	}
	if invoker.calls != 2 {
		t.Errorf("不应重试: calls = %d", invoker.calls)
	}
}

func TestPipeline_AskSkipsParser(t *testing.T) {
	// 问答模式下即使回复是不完整的JSON也原样返回
	invoker := &fakeInvoker{reply: "  {\"Name\":\"Pad Thai\"}  "}
	p, path := newTestPipeline(t, invoker)

	answer, err := p.Ask(context.Background(), path, "What is this?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != `{"Name":"Pad Thai"}` {
		t.Errorf("Ask() = %q", answer)
	}
	if got := invoker.messages[1].Text(); got != "Question: What is this?" {
		t.Errorf("user text = %q", got)
	}
}

func TestPipeline_AskEmptyQuestion(t *testing.T) {
	invoker := &fakeInvoker{reply: "x"}
	p, path := newTestPipeline(t, invoker)

	if _, err := p.Ask(context.Background(), path, ""); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
	if invoker.calls != 0 {
		t.Error("问题为空时不应调用模型")
	}
}

func TestPipeline_AskWhitespaceQuestion(t *testing.T) {
	invoker := &fakeInvoker{reply: "x"}
	p, path := newTestPipeline(t, invoker)

	if _, err := p.Ask(context.Background(), path, "   "); err != nil {
		t.Fatalf("只含空白的问题应原样转发: %v", err)
	}
	if invoker.calls != 1 {
		t.Errorf("calls = %d, want 1", invoker.calls)
	}
	if got := invoker.messages[1].Text(); got != "Question:    " {
		t.Errorf("user text = %q", got)
	}
}
