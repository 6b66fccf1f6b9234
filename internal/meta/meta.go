package meta

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/infra/exiftool"
	"github.com/Chen-Mingyu/phototime/internal/infra/imgx"
)

var canonicalRE = regexp.MustCompile(`^\d{4}:\d{2}:\d{2} \d{2}:\d{2}:\d{2}$`)

// Normalize 把工具/标签里读到的原始时间文本收敛为 canonical 形态。
//
// 规则：
// - 截断到 19 个字符（去掉时区后缀/亚秒）
// - 必须精确匹配 DDDD:DD:DD DD:DD:DD
// - 年份限定 [1970, 2100]
// - 拒绝 1904（QuickTime/MP4 容器常见的“未设置”默认年份）
func Normalize(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", false
	}
	if len(text) > 19 {
		text = text[:19]
	}
	if !canonicalRE.MatchString(text) {
		return "", false
	}

	year, err := strconv.Atoi(text[0:4])
	if err != nil || year < 1970 || year > 2100 || year == 1904 {
		return "", false
	}
	return text, true
}

// ToTime 把 canonical（或分隔符为 -、/ 的变体）解析成 time.Time（UTC）。
func ToTime(s string) (time.Time, error) {
	s = strings.ReplaceAll(strings.ReplaceAll(s, "-", ":"), "/", ":")
	return time.ParseInLocation(domain.CanonicalLayout, s, time.UTC)
}

// Probe 是读取结果。不变量：Corrupted 与非空 Date 互斥；
// 任意一条读取路径成功都不允许判损坏。
type Probe struct {
	Date      string
	Corrupted bool
}

// DateTool 抽象外部元数据工具。exiftool.Tool 是生产实现；
// 测试用桩替换，避免依赖本机 exiftool。
type DateTool interface {
	ReadDates(ctx context.Context, path string) (map[string]string, error)
	WriteDate(ctx context.Context, path, date string, fields []string) error
}

// 进程内解码可替换，测试注入失败/指定日期的场景。
var readCaptureDate = imgx.ReadCaptureDate

// Reader 组合进程内解码与外部工具兜底，判定文件当前的拍摄时间。
type Reader struct {
	Tool DateTool
}

// Read 返回 MetadataProbe。
//
// 顺序（不可调换）：
// 1. 图片先走进程内解码读标签；解码失败只是“损坏候选”
// 2. 外部工具按候选字段顺序兜底；非零退出/坏输出一律当“没读到”
// 3. 两条路都失败且进程内解码确实失败，才判损坏；视频永不判损坏
func (r Reader) Read(ctx context.Context, f domain.MediaFile) Probe {
	decodeFailed := false

	if f.Kind.CorruptibleByDecode() {
		raw, err := readCaptureDate(f.AbsPath)
		switch {
		case err == nil:
			if d, ok := Normalize(raw); ok {
				return Probe{Date: d}
			}
		case errors.Is(err, imgx.ErrNoDate):
			// 容器正常，仅无日期：继续兜底。
		default:
			decodeFailed = true
		}
	}

	if dates, err := r.Tool.ReadDates(ctx, f.AbsPath); err == nil {
		for _, k := range exiftool.ReadDateKeys {
			if d, ok := Normalize(dates[k]); ok {
				return Probe{Date: d}
			}
		}
	}

	if f.Kind.CorruptibleByDecode() && decodeFailed {
		return Probe{Corrupted: true}
	}
	return Probe{}
}

// Writer 按媒体类型把 canonical 日期写进对应字段集合。
// 失败时错误里带着工具的原始诊断文本；不自动重试（重试=用户重跑）。
type Writer struct {
	Tool DateTool
}

func (w Writer) Write(ctx context.Context, f domain.MediaFile, date string) error {
	return w.Tool.WriteDate(ctx, f.AbsPath, date, f.Kind.WriteFields())
}
