package check

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Chen-Mingyu/phototime/internal/domain"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("创建失败：%v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("编码失败：%v", err)
	}
}

func writeGarbage(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func imageFile(path string) domain.MediaFile {
	return domain.MediaFile{AbsPath: path, Base: filepath.Base(path), Kind: domain.KindImage}
}

func TestRun_SeparatesGoodAndCorrupted(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.png")
	bad := filepath.Join(root, "bad.png")
	writePNG(t, good)
	writeGarbage(t, bad)

	var calls int32
	sum := Run(context.Background(),
		[]domain.MediaFile{imageFile(good), imageFile(bad)},
		4,
		func(done, total int, _ domain.MediaFile, _ error) {
			atomic.AddInt32(&calls, 1)
			if total != 2 {
				t.Errorf("total 期望 2，实际 %d", total)
			}
		})

	if sum.Total != 2 || sum.Checked != 2 {
		t.Fatalf("期望 Total=2 Checked=2，实际 %+v", sum)
	}
	if len(sum.Corrupted) != 1 || sum.Corrupted[0].Path != bad {
		t.Fatalf("期望 1 条损坏记录（bad.png），实际 %+v", sum.Corrupted)
	}
	if sum.Corrupted[0].Reason == "" {
		t.Fatalf("损坏记录必须带原因")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("onDone 期望 2 次，实际 %d", calls)
	}
}

func TestRun_VideosNotDecoded(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "clip.mp4")
	writeGarbage(t, path)

	sum := Run(context.Background(), []domain.MediaFile{
		{AbsPath: path, Base: "clip.mp4", Kind: domain.KindVideo},
	}, 2, nil)

	if sum.Total != 1 || sum.Checked != 0 {
		t.Fatalf("视频不应参与解码校验：%+v", sum)
	}
	if len(sum.Corrupted) != 0 {
		t.Fatalf("视频不允许判损坏：%+v", sum.Corrupted)
	}
}

func TestRun_CancelStopsDispatch(t *testing.T) {
	root := t.TempDir()
	files := make([]domain.MediaFile, 0, 50)
	for i := 0; i < 50; i++ {
		p := filepath.Join(root, "f"+string(rune('a'+i%26))+".png")
		writeGarbage(t, p)
		files = append(files, imageFile(p))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := Run(ctx, files, 2, nil)
	if sum.Checked >= len(files) {
		t.Fatalf("取消后不应处理全部文件：Checked=%d", sum.Checked)
	}
}

func TestWriteReport_Triples(t *testing.T) {
	root := t.TempDir()
	items := []Item{
		{Name: "bad.png", Path: filepath.Join(root, "bad.png"), Reason: "无法解码"},
	}

	path, err := WriteReport(root, items)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if path != filepath.Join(root, ReportName) {
		t.Fatalf("清单路径不对：%q", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取清单失败：%v", err)
	}
	text := string(b)
	for _, want := range []string{"bad.png", items[0].Path, "无法解码"} {
		if !strings.Contains(text, want) {
			t.Fatalf("清单缺少 %q：\n%s", want, text)
		}
	}
}
