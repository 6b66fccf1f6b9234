package run

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/config"
	"github.com/Chen-Mingyu/phototime/internal/domain"
)

type stubProcessor struct {
	mu    sync.Mutex
	seen  []string
	delay time.Duration
	fn    func(f domain.MediaFile) domain.RepairOutcome
}

func (p *stubProcessor) Process(_ context.Context, f domain.MediaFile) domain.RepairOutcome {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	p.seen = append(p.seen, f.RelPath)
	p.mu.Unlock()
	if p.fn != nil {
		return p.fn(f)
	}
	return domain.RepairOutcome{File: f, NewPath: f.AbsPath, Action: domain.ActionSkip, Success: true}
}

type recordObserver struct {
	mu        sync.Mutex
	started   bool
	phases    []string
	fileDones int32
	lastTotal int

	progress          int32
	lastProgressDone  int
	lastProgressTotal int
	lastCounts        map[string]int
}

func (o *recordObserver) OnStart(config.EffectiveConfig, string) {
	o.mu.Lock()
	o.started = true
	o.mu.Unlock()
}
func (o *recordObserver) OnPhaseDone(name string, _ map[string]any, _ time.Duration) {
	o.mu.Lock()
	o.phases = append(o.phases, name)
	o.mu.Unlock()
}
func (o *recordObserver) OnFileDone(_, total int, _ domain.RepairOutcome, _ time.Duration) {
	atomic.AddInt32(&o.fileDones, 1)
	o.mu.Lock()
	o.lastTotal = total
	o.mu.Unlock()
}
func (o *recordObserver) OnProgress(done, total int, counts map[string]int, _ time.Duration) {
	atomic.AddInt32(&o.progress, 1)
	o.mu.Lock()
	o.lastProgressDone = done
	o.lastProgressTotal = total
	o.lastCounts = counts
	o.mu.Unlock()
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(root, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("写文件失败：%v", err)
		}
	}
}

func effFor(root string) config.EffectiveConfig {
	return config.EffectiveConfig{
		Path:    root,
		Workers: 4,
		Window:  domain.DefaultPlausibleWindow(),
	}
}

func TestExecute_ProcessesAllFilesAndFinalizes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.jpg", "a.jpg", "c.png")

	proc := &stubProcessor{}
	obs := &recordObserver{}
	rr := Execute(context.Background(), effFor(root), "fix", proc, obs)

	if len(rr.Items) != 3 {
		t.Fatalf("期望 3 条结果，实际 %d", len(rr.Items))
	}
	// Finalize 后按 path 排序。
	if rr.Items[0].Path != "a.jpg" || rr.Items[1].Path != "b.jpg" || rr.Items[2].Path != "c.png" {
		t.Fatalf("items 未按 path 排序：%+v", rr.Items)
	}
	if rr.Summary[domain.ActionSkip] != 3 {
		t.Fatalf("summary 不对：%+v", rr.Summary)
	}
	if rr.RunID == "" || rr.Flow != "fix" || rr.Root != root {
		t.Fatalf("报告头不完整：%+v", rr)
	}
	if rr.FinishedAt.Before(rr.StartedAt) {
		t.Fatalf("时间戳顺序不对")
	}
	if !obs.started || atomic.LoadInt32(&obs.fileDones) != 3 || obs.lastTotal != 3 {
		t.Fatalf("observer 事件缺失：%+v", obs)
	}
}

func TestExecute_ScanFailureBecomesSyntheticItem(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "does_not_exist")

	eff := effFor(missing)
	rr := Execute(context.Background(), eff, "fix", &stubProcessor{}, nil)

	if len(rr.Items) != 1 {
		t.Fatalf("期望 1 条合成失败项，实际 %d", len(rr.Items))
	}
	if rr.Items[0].ErrorCode != domain.ErrCodeIOFailed || rr.Items[0].Success {
		t.Fatalf("合成失败项不对：%+v", rr.Items[0])
	}
}

func TestExecute_CancelSkipsUndispatched(t *testing.T) {
	root := t.TempDir()
	names := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		names = append(names, string(rune('a'+i))+".jpg")
	}
	writeFiles(t, root, names...)

	ctx, cancel := context.WithCancel(context.Background())
	proc := &stubProcessor{delay: 20 * time.Millisecond}
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	eff := effFor(root)
	eff.Workers = 2
	rr := Execute(ctx, eff, "fix", proc, nil)

	if len(rr.Items) == 0 || len(rr.Items) >= 20 {
		t.Fatalf("取消后应只处理部分文件：%d", len(rr.Items))
	}
	// report 只包含实际处理过的文件。
	if len(rr.Items) != len(proc.seen) {
		t.Fatalf("report 条目数（%d）应等于实际处理数（%d）", len(rr.Items), len(proc.seen))
	}
}

func TestExecute_ProgressDrivenFromStats(t *testing.T) {
	old := progressInterval
	progressInterval = 5 * time.Millisecond
	defer func() { progressInterval = old }()

	root := t.TempDir()
	names := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		names = append(names, string(rune('a'+i))+".jpg")
	}
	writeFiles(t, root, names...)

	proc := &stubProcessor{delay: 15 * time.Millisecond}
	obs := &recordObserver{}
	eff := effFor(root)
	eff.Workers = 2
	Execute(context.Background(), eff, "fix", proc, obs)

	if atomic.LoadInt32(&obs.progress) == 0 {
		t.Fatalf("期望至少一次 OnProgress 推送")
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.lastProgressTotal != 8 {
		t.Fatalf("进度 total 期望 8，实际 %d", obs.lastProgressTotal)
	}
	if obs.lastProgressDone < 0 || obs.lastProgressDone > 8 {
		t.Fatalf("进度 done 越界：%d", obs.lastProgressDone)
	}
	// 快照按 action 聚合：done 必须等于各 action 之和。
	sum := 0
	for _, n := range obs.lastCounts {
		sum += n
	}
	if sum != obs.lastProgressDone {
		t.Fatalf("快照（%d）与 done（%d）不一致", sum, obs.lastProgressDone)
	}
}

func TestExecute_OutcomeFieldsCarriedIntoReport(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "wx_camera_1700000000000.jpg")

	proc := &stubProcessor{fn: func(f domain.MediaFile) domain.RepairOutcome {
		return domain.RepairOutcome{
			File:    f,
			NewPath: filepath.Join(root, domain.BucketWeChat, f.RelPath),
			Action:  domain.ActionFixedWeChat,
			Origin:  domain.OriginWeChat,
			Date:    "2023:11:14 22:13:20",
			Success: true,
		}
	}}

	rr := Execute(context.Background(), effFor(root), "fix", proc, nil)
	if len(rr.Items) != 1 {
		t.Fatalf("期望 1 条，实际 %d", len(rr.Items))
	}
	it := rr.Items[0]
	if it.Action != domain.ActionFixedWeChat || it.Date != "2023:11:14 22:13:20" || it.NewPath == "" {
		t.Fatalf("outcome 字段未进入 report：%+v", it)
	}
}
