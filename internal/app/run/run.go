package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/config"
	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/scan"
)

// Processor 是单文件处理器：fix 与 verify 的决策机都实现它。
// 实现必须并发安全，且把单文件失败收敛进 outcome。
type Processor interface {
	Process(ctx context.Context, f domain.MediaFile) domain.RepairOutcome
}

// progressInterval 是 OnProgress 的推送周期；测试可缩短。
var progressInterval = 2 * time.Second

// Execute 执行一次完整运行并返回对外稳定的 RunReport。
//
// 结构：扫描一次（串行）→ 固定 worker 池并发处理 → 按完成顺序收集。
// 取消语义：每次派发前检查 ctx；已开始的文件做完，未开始的不再派发，
// report 只包含实际处理过的文件。
func Execute(ctx context.Context, eff config.EffectiveConfig, flow string, proc Processor, obs Observer) domain.RunReport {
	if obs != nil {
		obs.OnStart(eff, flow)
	}

	rr := domain.NewRunReport(eff.Path, flow)

	scanStarted := time.Now()
	files, err := scan.Scan(eff.Path, eff.Video, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	scanDur := time.Since(scanStarted)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, scanDur)
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     eff.Workers,
			"total_files": len(files),
		}, 0)
	}

	workers := eff.Workers
	if workers < 1 {
		workers = 1
	}

	stats := domain.NewStats(len(files))

	// 进度推送由共享的 Stats 驱动：worker 只计数，展示策略归 Observer。
	execStarted := time.Now()
	var progressStop chan struct{}
	if obs != nil && len(files) > 0 {
		progressStop = make(chan struct{})
		go func() {
			t := time.NewTicker(progressInterval)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					// done 从同一份快照折算，保证与 counts 自洽。
					snap := stats.Snapshot()
					obs.OnProgress(statsDone(snap), stats.Total, snap, time.Since(execStarted))
				case <-progressStop:
					return
				}
			}
		}()
	}

	type result struct {
		out domain.RepairOutcome
		dur time.Duration
	}

	jobs := make(chan domain.MediaFile)
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				oneStarted := time.Now()
				out := proc.Process(ctx, f)
				stats.Add(out.Action)
				results <- result{out: out, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- f:
			}
		}
	}()

	done := 0
	for r := range results {
		done++
		rr.AddOutcome(r.out)
		if obs != nil {
			obs.OnFileDone(done, len(files), r.out, r.dur)
		}
	}
	if progressStop != nil {
		close(progressStop)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func statsDone(snap map[string]int) int {
	n := 0
	for _, v := range snap {
		n += v
	}
	return n
}

func syntheticFailed(code, msg string) domain.FileReport {
	return domain.FileReport{
		Action:    "failed",
		Success:   false,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
