package namedate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/domain"
)

// 文件名时间分析：按优先级短路（微信 > 截图 > 时间戳 > 纯日期）。
// 全部失败返回 Unknown —— 这是正常结果，不是错误。
//
// 注意：Go 正则不支持 lookaround，"数字不得被其他数字包夹"的约束
// 通过扫描最长数字段并要求精确长度（13/10/8）来实现。
var (
	wechatRE     = regexp.MustCompile(`(?:mmexport|wx_camera_)(\d{13})`)
	screenshotRE = regexp.MustCompile(`(20\d{2})[-_]?(\d{2})[-_]?(\d{2})[-_]?(\d{2})[-_]?(\d{2})[-_]?(\d{2})`)
	digitRunRE   = regexp.MustCompile(`\d+`)
)

// Parse 从文件名解析最可信的拍摄时间（canonical 形态，UTC）。
// window 之外的 epoch 时间戳视为不合理：丢弃并继续尝试后续模式。
func Parse(filename string, window domain.PlausibleWindow) domain.CandidateDate {
	// 0. 最优先：微信导出（mmexport/wx_camera_ + 13 位毫秒）。
	if m := wechatRE.FindStringSubmatch(filename); m != nil {
		if sec, ok := epochFromDigits(m[1]); ok && window.Contains(sec) {
			return domain.CandidateDate{Origin: domain.OriginWeChat, Value: formatEpoch(sec)}
		}
	}

	// 1. 截图/精确时间：六段数字，分隔符可选。位宽已由正则约束，
	//    不再做额外合理性检查，直接拼 canonical。
	if m := screenshotRE.FindStringSubmatch(filename); m != nil {
		return domain.CandidateDate{
			Origin: domain.OriginScreenshot,
			Value:  fmt.Sprintf("%s:%s:%s %s:%s:%s", m[1], m[2], m[3], m[4], m[5], m[6]),
		}
	}

	// 2. 裸 Unix 时间戳：恰好 10 位（秒）或 13 位（毫秒），以 1 开头。
	//    单个候选不合理时继续扫描同名中的下一个候选。
	for _, run := range digitRunRE.FindAllString(filename, -1) {
		if len(run) != 10 && len(run) != 13 {
			continue
		}
		if !strings.HasPrefix(run, "1") {
			continue
		}
		sec, ok := epochFromDigits(run)
		if !ok || !window.Contains(sec) {
			continue
		}
		return domain.CandidateDate{Origin: domain.OriginTimestamp, Value: formatEpoch(sec)}
	}

	// 3. 保底：纯日期 YYYYMMDD（20xx，月日必须合法；不做闰年/大小月校验）。
	//    时分秒取正午 12:00:00，避免后续读取跨时区移日。
	for _, run := range digitRunRE.FindAllString(filename, -1) {
		if len(run) != 8 || !strings.HasPrefix(run, "20") {
			continue
		}
		month, _ := strconv.Atoi(run[4:6])
		day, _ := strconv.Atoi(run[6:8])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		return domain.CandidateDate{
			Origin: domain.OriginDateOnly,
			Value:  fmt.Sprintf("%s:%s:%s 12:00:00", run[0:4], run[4:6], run[6:8]),
		}
	}

	return domain.CandidateDate{Origin: domain.OriginUnknown}
}

// epochFromDigits 把 10/13 位数字串转成 epoch 秒（毫秒截断到秒）。
func epochFromDigits(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	if len(s) == 13 {
		n /= 1000
	}
	return n, true
}

func formatEpoch(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(domain.CanonicalLayout)
}
