package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码 PNG 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("编码 JPEG 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func TestDetectFormat_PNGWithJPGSuffix(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.jpg") // 真实格式是 PNG
	writePNG(t, p)

	format, err := DetectFormat(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if format != "png" {
		t.Fatalf("期望 png，实际 %q", format)
	}
}

func TestNormalizeExtFor(t *testing.T) {
	dir := t.TempDir()

	mismatched := filepath.Join(dir, "a.jpg")
	writePNG(t, mismatched)
	if got, err := NormalizeExtFor(mismatched); err != nil || got != ".png" {
		t.Fatalf("期望 .png，实际 %q err=%v", got, err)
	}

	// .jpeg 对真实 JPEG：等价扩展名，不改。
	equivalent := filepath.Join(dir, "b.jpeg")
	writeJPEG(t, equivalent)
	if got, err := NormalizeExtFor(equivalent); err != nil || got != "" {
		t.Fatalf("期望不改名，实际 %q err=%v", got, err)
	}

	matched := filepath.Join(dir, "c.png")
	writePNG(t, matched)
	if got, err := NormalizeExtFor(matched); err != nil || got != "" {
		t.Fatalf("期望不改名，实际 %q err=%v", got, err)
	}
}

func TestVerify_GarbageIsDecodeError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(p, []byte("not an image at all"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}

	err := Verify(p)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("期望 ErrDecode，实际：%v", err)
	}
}

func TestVerify_ValidImages(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.png")
	p2 := filepath.Join(dir, "b.jpg")
	writePNG(t, p1)
	writeJPEG(t, p2)

	if err := Verify(p1); err != nil {
		t.Fatalf("PNG 校验失败：%v", err)
	}
	if err := Verify(p2); err != nil {
		t.Fatalf("JPEG 校验失败：%v", err)
	}
}

func TestReadCaptureDate_NoExifIsNoDate(t *testing.T) {
	dir := t.TempDir()

	p1 := filepath.Join(dir, "a.jpg")
	writeJPEG(t, p1)
	if _, err := ReadCaptureDate(p1); !errors.Is(err, ErrNoDate) {
		t.Fatalf("JPEG 无 EXIF 应为 ErrNoDate，实际：%v", err)
	}

	p2 := filepath.Join(dir, "b.png")
	writePNG(t, p2)
	if _, err := ReadCaptureDate(p2); !errors.Is(err, ErrNoDate) {
		t.Fatalf("PNG 无 eXIf 应为 ErrNoDate，实际：%v", err)
	}
}

func TestReadCaptureDate_GarbageIsDecodeError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.heic")
	if err := os.WriteFile(p, []byte("\x00\x01\x02\x03 garbage"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}

	_, err := ReadCaptureDate(p)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("期望 ErrDecode，实际：%v", err)
	}
}
