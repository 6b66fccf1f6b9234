package analyze

import (
	"context"
	"testing"

	"github.com/Chen-Mingyu/phototime/internal/domain"
)

type stubSource struct{ dates map[string]string }

func (s stubSource) Date(path string) string { return s.dates[path] }

func file(name string) domain.MediaFile {
	return domain.MediaFile{AbsPath: "/photos/" + name, Base: trimExt(name), Kind: domain.KindImage}
}

func trimExt(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

func TestRun_ClassifiesGapsByOrigin(t *testing.T) {
	files := []domain.MediaFile{
		file("has_date.jpg"),
		file("wx_camera_1700000000000.jpg"),
		file("Screenshot_2023-11-05-08-01-17.png"),
		file("random_name.jpg"),
	}
	src := stubSource{dates: map[string]string{
		"/photos/has_date.jpg": "2020:11:20 19:28:27",
	}}

	sum := Run(context.Background(), files, domain.DefaultPlausibleWindow(), src, nil)

	if sum.Total != 4 || sum.WithDate != 1 {
		t.Fatalf("期望 Total=4 WithDate=1，实际 %+v", sum)
	}
	if len(sum.Gaps) != 3 {
		t.Fatalf("期望 3 个缺口，实际 %d", len(sum.Gaps))
	}
	if sum.ByOrigin[domain.OriginWeChat] != 1 ||
		sum.ByOrigin[domain.OriginScreenshot] != 1 ||
		sum.ByOrigin[domain.OriginUnknown] != 1 {
		t.Fatalf("来源分类不对：%+v", sum.ByOrigin)
	}
}

func TestRun_CancelStopsEarly(t *testing.T) {
	files := []domain.MediaFile{file("a.jpg"), file("b.jpg")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := Run(ctx, files, domain.DefaultPlausibleWindow(), stubSource{}, nil)
	if len(sum.Gaps) != 0 || sum.WithDate != 0 {
		t.Fatalf("取消后不应继续读取：%+v", sum)
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	files := []domain.MediaFile{file("a.jpg"), file("b.jpg")}
	var seen []int
	Run(context.Background(), files, domain.DefaultPlausibleWindow(), stubSource{},
		func(done, total int, _ domain.MediaFile) {
			if total != 2 {
				t.Errorf("total 期望 2，实际 %d", total)
			}
			seen = append(seen, done)
		})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("进度回调顺序不对：%v", seen)
	}
}
