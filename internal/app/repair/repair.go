package repair

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/infra/exiftool"
	"github.com/Chen-Mingyu/phototime/internal/infra/fsx"
	"github.com/Chen-Mingyu/phototime/internal/infra/imgx"
	"github.com/Chen-Mingyu/phototime/internal/meta"
	"github.com/Chen-Mingyu/phototime/internal/namedate"
)

// MetadataReader 判定文件当前的拍摄时间（含损坏判定）。
type MetadataReader interface {
	Read(ctx context.Context, f domain.MediaFile) meta.Probe
}

// MetadataWriter 把 canonical 日期写入文件的对应字段集合。
type MetadataWriter interface {
	Write(ctx context.Context, f domain.MediaFile, date string) error
}

// 可替换的文件系统入口，便于注入故障。
var (
	moveFunc      = fsx.MoveNoClobber
	renameExtFunc = fsx.RenameWithExt
)

// Engine 是单文件修复决策机：每个文件走一遍固定顺序的判定，
// 恰好产生一个 RepairOutcome。方法无共享可变状态，可被多 worker 并发调用。
type Engine struct {
	Buckets domain.Buckets
	Window  domain.PlausibleWindow
	Reader  MetadataReader
	Writer  MetadataWriter
}

// Process 执行修复决策（顺序固定，不可调换）：
//
// 1. 扩展名修正（仅图片）：按真实格式改名，后续一律用新路径
// 2. 损坏判定：确认损坏 → 移入 corrupted_files，流程终止（操作本身算成功）
// 3. 已有可信日期 → skip，不移动
// 4. 文件名解析不出日期 → 移入 manual_review
// 5. 写入失败 → write_failed，原地保留（重试 = 用户重跑）
// 6. 写入成功 → 按来源移入对应 fixed_* bucket；移动失败单独记 move_failed
//
// 所有失败都收敛进 outcome，绝不因单个文件打断批处理。
func (e Engine) Process(ctx context.Context, f domain.MediaFile) domain.RepairOutcome {
	f = e.normalizeExt(f)

	probe := e.Reader.Read(ctx, f)
	if probe.Corrupted {
		return e.moveTo(f, domain.BucketCorrupted, domain.RepairOutcome{
			File:    f,
			Action:  domain.ActionCorrupted,
			Success: true,
			ErrCode: domain.ErrCodeDecodeFailed,
		})
	}
	if probe.Date != "" {
		return domain.RepairOutcome{
			File: f, NewPath: f.AbsPath,
			Action:  domain.ActionSkip,
			Date:    probe.Date,
			Success: true,
		}
	}

	cand := namedate.Parse(f.Base, e.Window)
	if !cand.Found() {
		return e.moveTo(f, domain.BucketReview, domain.RepairOutcome{
			File:    f,
			Action:  domain.ActionReview,
			Success: true,
		})
	}

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
		}
	}

	return e.moveTo(f, domain.FixedBucketFor(cand.Origin), domain.RepairOutcome{
		File:    f,
		Action:  actionForOrigin(cand.Origin),
		Origin:  cand.Origin,
		Date:    cand.Value,
		Success: true,
	})
}

// normalizeExt 按真实格式修正扩展名，返回（可能已改名的）文件描述。
// 嗅探失败不在这里处理：损坏与否由后面的读取判定统一裁决。
// 改名失败也不终止流程，只记日志并沿用原路径。
func (e Engine) normalizeExt(f domain.MediaFile) domain.MediaFile {
	if !f.Kind.CanNormalizeExt() {
		return f
	}

	newExt, err := imgx.NormalizeExtFor(f.AbsPath)
	if err != nil || newExt == "" {
		return f
	}

	newPath, err := renameExtFunc(f.AbsPath, newExt)
	if err != nil {
		logrus.WithField("path", f.AbsPath).WithError(err).Warn("扩展名修正失败，沿用原扩展名")
		return f
	}

	logrus.WithFields(logrus.Fields{"from": f.AbsPath, "to": newPath}).Debug("扩展名已修正")
	base := filepath.Base(newPath)
	f.AbsPath = newPath
	f.Base = strings.TrimSuffix(base, filepath.Ext(base))
	f.Ext = strings.ToLower(filepath.Ext(base))
	return f
}

// moveTo 把文件移入 bucket 并填充 NewPath。
// 移动失败统一覆盖为 move_failed（与 verify 流程同一约定），
// 这样 summary 里同名计数在两套流程下含义一致。
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

func actionForOrigin(origin domain.Origin) string {
	switch origin {
	case domain.OriginWeChat:
		return domain.ActionFixedWeChat
	case domain.OriginScreenshot:
		return domain.ActionFixedScreenshot
	default:
		return domain.ActionFixedDate
	}
}
