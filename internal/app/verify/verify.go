package verify

import (
	"context"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/app/repair"
	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/infra/exiftool"
	"github.com/Chen-Mingyu/phototime/internal/infra/fsx"
	"github.com/Chen-Mingyu/phototime/internal/meta"
	"github.com/Chen-Mingyu/phototime/internal/namedate"
)

var moveFunc = fsx.MoveNoClobber

// Engine 是核验流程的单文件决策机：以文件名时间为基准，
// 对已有元数据做一致性校验与纠偏。与修复流程共享读写与移动设施。
type Engine struct {
	Buckets   domain.Buckets
	Window    domain.PlausibleWindow
	Tolerance time.Duration
	Reader    repair.MetadataReader
	Writer    repair.MetadataWriter
}

// Process 执行核验决策（顺序固定）：
//
// 1. 文件名解析不出日期 → untouched，原地不动（没有基准就没有核验）
// 2. 文件无既有日期 → 补写文件名时间，移入 fixed_new
// 3. 偏差在容差内 → 不写，归档到 verified_ok
// 4. 偏差超容差 → 按文件名时间覆盖，移入 fixed_corrected
//
// 容差吸收舍入与时区抖动；比较两侧都是 canonical 文本，按 UTC 解析。
func (e Engine) Process(ctx context.Context, f domain.MediaFile) domain.RepairOutcome {
	cand := namedate.Parse(f.Base, e.Window)
	if !cand.Found() {
		return domain.RepairOutcome{
			File: f, NewPath: f.AbsPath,
			Action:  domain.ActionUntouched,
			Success: true,
		}
	}

	probe := e.Reader.Read(ctx, f)
	if probe.Date == "" {
		if out, ok := e.write(ctx, f, cand); !ok {
			return out
		}
		return e.moveTo(f, domain.BucketNew, domain.RepairOutcome{
			File:    f,
			Action:  domain.ActionNew,
			Origin:  cand.Origin,
			Date:    cand.Value,
			Success: true,
		})
	}

	if e.withinTolerance(probe.Date, cand.Value) {
		return e.moveTo(f, domain.BucketVerified, domain.RepairOutcome{
			File:    f,
			Action:  domain.ActionVerified,
			Origin:  cand.Origin,
			Date:    probe.Date,
			Success: true,
		})
	}

	if out, ok := e.write(ctx, f, cand); !ok {
		return out
	}
	return e.moveTo(f, domain.BucketCorrected, domain.RepairOutcome{
		File:    f,
		Action:  domain.ActionCorrected,
		Origin:  cand.Origin,
		Date:    cand.Value,
		Success: true,
	})
}

// withinTolerance 比较两个 canonical 时间的偏差是否不超过容差。
// 任一侧解析失败按“超容差”处理（宁可多写一次也不放过偏差）。
func (e Engine) withinTolerance(existing, wanted string) bool {
	a, err := meta.ToTime(existing)
	if err != nil {
		return false
	}
	b, err := meta.ToTime(wanted)
	if err != nil {
		return false
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= e.Tolerance
}

func (e Engine) write(ctx context.Context, f domain.MediaFile, cand domain.CandidateDate) (domain.RepairOutcome, bool) {
	if err := e.Writer.Write(ctx, f, cand.Value); err != nil {
		code := exiftool.ErrKind(err)
		if code == "" {
			code = domain.ErrCodeToolFailed
		}
		return domain.RepairOutcome{
			File: f, NewPath: f.AbsPath,
			Action: domain.ActionWriteFailed,
			Origin: cand.Origin, Date: cand.Value,
			ErrCode: code, ErrMsg: err.Error(),
		}, false
	}
	return domain.RepairOutcome{}, true
}

func (e Engine) moveTo(f domain.MediaFile, bucket string, out domain.RepairOutcome) domain.RepairOutcome {
	newPath, err := moveFunc(f.AbsPath, e.Buckets.Dir(bucket))
	if err != nil {
		out.NewPath = f.AbsPath
		out.Action = domain.ActionMoveFailed
		out.Success = false
		out.ErrCode = domain.ErrCodeMoveFailed
		out.ErrMsg = err.Error()
		return out
	}
	out.NewPath = newPath
	return out
}
