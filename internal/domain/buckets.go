package domain

import "path/filepath"

// bucket 目录名：固定用途的输出子目录，按结果分类接收文件。
const (
	BucketWeChat     = "fixed_wechat"
	BucketScreenshot = "fixed_screenshot"
	BucketDate       = "fixed_date"
	BucketReview     = "manual_review"
	BucketCorrupted  = "corrupted_files"

	BucketNew       = "fixed_new"
	BucketCorrected = "fixed_corrected"
	BucketVerified  = "verified_ok"
)

// AllBucketNames 列出两套流程的全部 bucket 目录名。
// 扫描阶段统一排除（即使当前流程用不到），保证重复运行幂等、不自吞产物。
func AllBucketNames() []string {
	return []string{
		BucketWeChat, BucketScreenshot, BucketDate, BucketReview, BucketCorrupted,
		BucketNew, BucketCorrected, BucketVerified,
	}
}

// Buckets 把 bucket 名映射到扫描根下的绝对路径。
// 目录按需惰性创建（由 fsx.MoveNoClobber 负责）。
type Buckets struct {
	Root string
}

func (b Buckets) Dir(name string) string {
	return filepath.Join(b.Root, name)
}

// FixedBucketFor 返回修复成功后按来源分类的 bucket 名。
// Timestamp 与 DateOnly 共用 fixed_date（与参考行为一致）。
func FixedBucketFor(origin Origin) string {
	switch origin {
	case OriginWeChat:
		return BucketWeChat
	case OriginScreenshot:
		return BucketScreenshot
	default:
		return BucketDate
	}
}
