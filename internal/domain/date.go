package domain

// CanonicalLayout 是内部统一使用的时间文本形态（比较与工具调用都用它）。
const CanonicalLayout = "2006:01:02 15:04:05"

// Origin 标记文件名日期的来源模式，决定修复后落入哪个 bucket。
type Origin string

const (
	OriginWeChat     Origin = "WeChat"
	OriginScreenshot Origin = "Screenshot"
	OriginTimestamp  Origin = "Timestamp"
	OriginDateOnly   Origin = "DateOnly"
	OriginUnknown    Origin = "Unknown"
)

// CandidateDate 是文件名解析的结果。Origin==OriginUnknown 时 Value 必为空；
// 这是正常预期结果（进 manual_review），不是错误。
type CandidateDate struct {
	Origin Origin
	Value  string // CanonicalLayout 形态；Unknown 时为空
}

// Found 报告是否解析出了可用日期。
func (c CandidateDate) Found() bool {
	return c.Origin != OriginUnknown && c.Value != ""
}

// PlausibleWindow 是 epoch 秒的开区间 (After, Before)：
// 落在区间外的时间戳按“不合理”丢弃，继续尝试后续模式。
type PlausibleWindow struct {
	After  int64 // 默认 631152000（1990-01-01）
	Before int64 // 默认 1893456000（2030-01-01）
}

// DefaultPlausibleWindow 返回参考常量（1990-01-01, 2030-01-01）。
func DefaultPlausibleWindow() PlausibleWindow {
	return PlausibleWindow{After: 631152000, Before: 1893456000}
}

// Contains 做开区间判断：边界值本身一律拒绝。
func (w PlausibleWindow) Contains(sec int64) bool {
	return sec > w.After && sec < w.Before
}
