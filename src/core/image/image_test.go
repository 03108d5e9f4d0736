package image

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"

	"golang.org/x/image/bmp"
)

func testLogger() *utils.Logger {
	return utils.NewWriterLogger(io.Discard, "debug")
}

func testSecurity() *configs.SecurityConfig {
	v := configs.VLLMConfig{}
	v.ApplyDefaults()
	return &v.Security
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: 120, B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("生成JPEG失败: %v", err)
	}
	return buf.Bytes()
}

func makePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("生成PNG失败: %v", err)
	}
	return buf.Bytes()
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meal.jpeg")
	want := []byte{0xFF, 0xD8, 0x01, 0x02}
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("LoadImage() = %v, want %v", got, want)
	}
}

func TestLoadImage_FileAccessError(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"不存在的文件": filepath.Join(dir, "missing.jpeg"),
		"目录":     dir,
		"空路径":    "",
	} {
		t.Run(name, func(t *testing.T) {
			data, err := LoadImage(path)
			if !errors.Is(err, types.ErrFileAccess) {
				t.Errorf("err = %v, want ErrFileAccess", err)
			}
			if data != nil {
				t.Errorf("失败时不应返回数据, got %d bytes", len(data))
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	inputs := [][]byte{
		{},
		{0x00},
		{0xFF, 0xD8, 0xFF},
		[]byte("noodles"),
	}
	for i := 0; i < 50; i++ {
		b := make([]byte, rng.Intn(300))
		rng.Read(b)
		inputs = append(inputs, b)
	}

	for _, in := range inputs {
		out, err := Decode(Encode(in))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("round-trip 不一致: %v != %v", out, in)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode("not base64!!"); !errors.Is(err, types.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
}

func TestDataURI(t *testing.T) {
	uri := DataURI("jpeg", "QUJD")
	if uri != "data:image/jpeg;base64,QUJD" {
		t.Errorf("DataURI = %q", uri)
	}
	if DataURI("jpg", "QUJD") != uri || DataURI("", "QUJD") != uri {
		t.Error("jpg 和空格式应规范为 jpeg")
	}

	format, data, err := SplitDataURI(uri)
	if err != nil || format != "jpeg" || data != "QUJD" {
		t.Errorf("SplitDataURI = %q, %q, %v", format, data, err)
	}

	if _, _, err := SplitDataURI("https://example.com/a.jpg"); !errors.Is(err, types.ErrEncoding) {
		t.Errorf("非 data URI 应返回 ErrEncoding, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	if got := DetectFormat(makeJPEG(t, 2, 2)); got != "jpeg" {
		t.Errorf("DetectFormat(jpeg) = %q", got)
	}
	if got := DetectFormat(makePNG(t)); got != "png" {
		t.Errorf("DetectFormat(png) = %q", got)
	}
	if got := DetectFormat([]byte("hello")); got != "" {
		t.Errorf("DetectFormat(text) = %q", got)
	}
}

func TestValidateImage(t *testing.T) {
	security := testSecurity()
	security.EnableDeepScan = true
	v := NewImageSecurityValidator(security, testLogger())

	t.Run("有效JPEG", func(t *testing.T) {
		result := v.ValidateImage(makeJPEG(t, 8, 6), "")
		if !result.IsValid {
			t.Fatalf("应通过验证: %v", result.Error)
		}
		if result.Format != "jpeg" || result.Width != 8 || result.Height != 6 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("有效BMP", func(t *testing.T) {
		img := stdimage.NewGray(stdimage.Rect(0, 0, 5, 3))
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		withBMP := *security
		withBMP.AllowedFormats = append([]string{"bmp"}, security.AllowedFormats...)
		result := NewImageSecurityValidator(&withBMP, testLogger()).ValidateImage(buf.Bytes(), "")
		if !result.IsValid {
			t.Fatalf("BMP 应通过验证: %v", result.Error)
		}
		if result.Format != "bmp" || result.Width != 5 || result.Height != 3 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("PNG不在允许列表", func(t *testing.T) {
		if result := v.ValidateImage(makePNG(t), ""); result.IsValid {
			t.Error("PNG 应被拒绝")
		}
	})

	t.Run("空数据", func(t *testing.T) {
		if result := v.ValidateImage(nil, ""); result.IsValid {
			t.Error("空数据应被拒绝")
		}
	})

	t.Run("可执行文件伪装", func(t *testing.T) {
		data := append([]byte{0x4D, 0x5A}, make([]byte, 64)...)
		result := v.ValidateImage(data, "jpeg")
		if result.IsValid || result.SecurityRisk == "" {
			t.Errorf("应识别为安全风险: %+v", result)
		}
	})

	t.Run("损坏的JPEG", func(t *testing.T) {
		data := []byte{0xFF, 0xD8, 0x00, 0x00, 0x00}
		if result := v.ValidateImage(data, ""); result.IsValid {
			t.Error("损坏的JPEG应被拒绝")
		}
	})

	t.Run("文件过大", func(t *testing.T) {
		small := *security
		small.MaxFileSize = 10
		result := NewImageSecurityValidator(&small, testLogger()).ValidateImage(makeJPEG(t, 8, 8), "")
		if result.IsValid {
			t.Error("超过 MaxFileSize 应被拒绝")
		}
	})

	t.Run("尺寸超限", func(t *testing.T) {
		small := *security
		small.MaxWidth = 4
		result := NewImageSecurityValidator(&small, testLogger()).ValidateImage(makeJPEG(t, 8, 2), "")
		if result.IsValid {
			t.Error("超过 MaxWidth 应被拒绝")
		}
	})
}

func TestImageProcessor_Prepare(t *testing.T) {
	dir := t.TempDir()
	p, err := NewImageProcessor(testSecurity(), dir, testLogger())
	if err != nil {
		t.Fatalf("NewImageProcessor() error = %v", err)
	}

	data := makeJPEG(t, 4, 4)
	id, path, err := p.Save(data, "jpeg")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" || filepath.Dir(path) != dir {
		t.Errorf("Save() = %q, %q", id, path)
	}

	encoded, err := p.Prepare(context.Background(), path)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if encoded.Format != "jpeg" || encoded.Size != len(data) {
		t.Errorf("encoded = %+v", encoded)
	}
	if encoded.DataURI != "data:image/jpeg;base64,"+Encode(data) {
		t.Error("DataURI 与编码数据不一致")
	}

	if _, err := p.Prepare(context.Background(), filepath.Join(dir, "nope.jpeg")); !errors.Is(err, types.ErrFileAccess) {
		t.Errorf("缺失文件 err = %v, want ErrFileAccess", err)
	}

	garbage := filepath.Join(dir, "garbage.jpeg")
	if err := os.WriteFile(garbage, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Prepare(context.Background(), garbage); !errors.Is(err, types.ErrEncoding) {
		t.Errorf("非图片 err = %v, want ErrEncoding", err)
	}

	m := p.GetMetrics()
	if m.TotalProcessed != 3 || m.LoadFailures != 1 || m.FailedValidations != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestImageProcessor_PrepareCanceled(t *testing.T) {
	p, err := NewImageProcessor(testSecurity(), t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Prepare(ctx, "whatever.jpeg"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestImageProcessor_Cleanup(t *testing.T) {
	dir := t.TempDir()
	p, err := NewImageProcessor(testSecurity(), dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, oldPath, _ := p.Save(makeJPEG(t, 2, 2), "jpeg")
	_, newPath, _ := p.Save(makeJPEG(t, 2, 2), "jpeg")
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := p.Cleanup(time.Hour)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Cleanup() = %d, want 1", n)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("过期文件应被删除")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("未过期文件不应被删除")
	}
}
