package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/config"
	"github.com/Chen-Mingyu/phototime/internal/domain"
)

func TestProgressUI_OnFileDoneLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnFileDone(1, 3, domain.RepairOutcome{
		File:    domain.MediaFile{RelPath: "wx_camera_1700000000000.jpg"},
		Action:  domain.ActionFixedWeChat,
		Date:    "2023:11:14 22:13:20",
		Success: true,
	}, 200*time.Millisecond)
	p.OnFileDone(2, 3, domain.RepairOutcome{
		File:    domain.MediaFile{RelPath: "a.jpg"},
		Action:  domain.ActionSkip,
		Success: true,
	}, 0)
	p.OnFileDone(3, 3, domain.RepairOutcome{
		File:    domain.MediaFile{RelPath: "b.jpg"},
		Action:  domain.ActionWriteFailed,
		ErrCode: domain.ErrCodeToolFailed,
		ErrMsg:  "exit status 1",
	}, 0)

	out := buf.String()
	for _, want := range []string{
		"[1/3] wx_camera_1700000000000.jpg OK fixed_wechat date=2023:11:14 22:13:20",
		"[2/3] a.jpg SKIP skip",
		"[3/3] b.jpg FAIL tool_failed: exit status 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestProgressUI_OnProgressKeepalive(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	p.workers = 4
	counts := map[string]int{
		domain.ActionFixedDate:   2,
		domain.ActionSkip:        1,
		domain.ActionWriteFailed: 1,
	}

	// 输出沉默超过阈值：必须补一行进度。
	p.lastPrinted = time.Now().Add(-time.Minute)
	p.OnProgress(4, 10, counts, 90*time.Second)
	out := buf.String()
	if !strings.Contains(out, "done=4/10 ok=2 fail=1 skip=1 active=4 elapsed=00:01:30") {
		t.Fatalf("进度行不对：\n%s", out)
	}

	// 刚刚打印过：同样的推送必须被抑制。
	buf.Reset()
	p.OnProgress(5, 10, counts, 91*time.Second)
	if buf.Len() != 0 {
		t.Fatalf("阈值内不应重复输出：%q", buf.String())
	}
}

func TestClassifyCounts(t *testing.T) {
	ok, fail, skip := classifyCounts(map[string]int{
		domain.ActionFixedWeChat: 2,
		domain.ActionReview:      1,
		domain.ActionUntouched:   3,
		domain.ActionMoveFailed:  1,
		"failed":                 1,
	})
	if ok != 3 || fail != 2 || skip != 3 {
		t.Fatalf("折算不对：ok=%d fail=%d skip=%d", ok, fail, skip)
	}
}

func TestProgressUI_OnStartShowsEffectiveConfig(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(config.EffectiveConfig{
		Path:        "/photos",
		Workers:     8,
		Video:       false,
		ExcludeDirs: []string{"keepout"},
	}, "fix")

	out := buf.String()
	for _, want := range []string{"phototime fix", "path: /photos", "workers: 8", "video: off", `["keepout"]`} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 8); got != "hello..." {
		t.Fatalf("truncate 不对：%q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("不应截断：%q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3661 * time.Second); got != "01:01:01" {
		t.Fatalf("formatElapsed 不对：%q", got)
	}
}
