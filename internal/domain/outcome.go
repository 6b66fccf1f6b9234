package domain

// 每个文件恰好产生一个 action；汇总计数按 action 分类。
const (
	ActionSkip            = "skip"             // 已有可信日期，不动
	ActionFixedWeChat     = "fixed_wechat"     // 按微信时间戳修复
	ActionFixedScreenshot = "fixed_screenshot" // 按截图时间修复
	ActionFixedDate       = "fixed_date"       // 按裸时间戳/纯日期修复
	ActionReview          = "review"           // 文件名无法识别，移交人工
	ActionCorrupted       = "corrupted"        // 两条读取路径都确认损坏
	ActionWriteFailed     = "write_failed"     // 工具写入失败，原地保留可重试
	ActionMoveFailed      = "move_failed"      // 写入成功但移动失败
)

// verify 流程的 action（§VerificationPass）。
const (
	ActionVerified  = "verified"  // 文件名与既有日期一致（容差内）
	ActionCorrected = "corrected" // 偏差超容差，已按文件名时间覆盖
	ActionNew       = "new"       // 原本无日期，已补写
	ActionUntouched = "untouched" // 文件名无日期线索，原地不动
)

// 稳定的 error_code（出现在 report 与进度输出里）。
const (
	ErrCodeDecodeFailed = "decode_failed"
	ErrCodeToolNotFound = "tool_not_found"
	ErrCodeToolFailed   = "tool_failed"
	ErrCodeToolTimeout  = "tool_timeout"
	ErrCodeMoveFailed   = "move_failed"
	ErrCodeIOFailed     = "io_failed"
)

// RepairOutcome 是单个文件的最终结果：创建一次，之后不可变。
// 所有单文件失败都收敛到这里，不允许逃逸打断批处理。
type RepairOutcome struct {
	File    MediaFile
	NewPath string // 移动/改名后的最终路径；未移动时等于 File.AbsPath
	Action  string
	Origin  Origin // 仅 fixed_* 有意义
	Date    string // 写入的 canonical 日期（fixed_*/corrected/new）
	Success bool

	ErrCode string
	ErrMsg  string
}
