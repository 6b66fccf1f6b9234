package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/app/run"
	"github.com/Chen-Mingyu/phototime/internal/config"
	"github.com/Chen-Mingyu/phototime/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：OnProgress 由 run 层按 Stats 周期推送；这里只在
//   长时间没有单文件输出时才补一行，避免刷屏
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	lastPrinted time.Time

	workers int

	keepaliveThreshold time.Duration
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, flow string) {
	now := time.Now()

	p.mu.Lock()
	fmt.Fprintf(p.w, "[%s] phototime %s\n", now.Format("15:04:05"), flow)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	fmt.Fprintf(p.w, "  video: %s\n", onOff(eff.Video))
	if strings.TrimSpace(eff.ExiftoolPath) != "" {
		fmt.Fprintf(p.w, "  exiftool: %s\n", eff.ExiftoolPath)
	}
	if flow == "verify" {
		fmt.Fprintf(p.w, "  tolerance: %s\n", eff.Tolerance)
	}
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 bucket 目录\n", formatStringListJSON(eff.ExcludeDirs))

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  report: %s\n", filepath.Join(eff.Path, reportName))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "exec":
		p.workers = intField(fields, "workers")
		fmt.Fprintf(p.w, "执行: workers=%d total_files=%d\n\n", p.workers, intField(fields, "total_files"))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFileDone(idx, total int, out domain.RepairOutcome, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "OK"
	switch {
	case !out.Success:
		status = "FAIL"
	case out.Action == domain.ActionSkip || out.Action == domain.ActionUntouched:
		status = "SKIP"
	}

	switch {
	case !out.Success:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, out.File.RelPath, status, out.ErrCode, truncate(out.ErrMsg, 160), formatShortDuration(dur),
		)
	case out.Date != "":
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s date=%s (%s)\n",
			idx, total, out.File.RelPath, status, out.Action, out.Date, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s (%s)\n",
			idx, total, out.File.RelPath, status, out.Action, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()
}

// OnProgress 消费 run 层按 Stats 快照推送的进度。
// 只在输出沉默超过阈值时打印，避免与逐文件行刷屏。
func (p *progressUI) OnProgress(done, total int, counts map[string]int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastPrinted) <= p.keepaliveThreshold {
		return
	}

	ok, fail, skip := classifyCounts(counts)
	active := p.workers
	if remain := total - done; remain < active {
		active = remain
	}
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
		done, total, ok, fail, skip, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

// classifyCounts 把按 action 聚合的计数折算成 ok/fail/skip 三类。
func classifyCounts(counts map[string]int) (ok, fail, skip int) {
	for action, n := range counts {
		switch action {
		case domain.ActionSkip, domain.ActionUntouched:
			skip += n
		case domain.ActionWriteFailed, domain.ActionMoveFailed, "failed":
			fail += n
		default:
			ok += n
		}
	}
	return ok, fail, skip
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
