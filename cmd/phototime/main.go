package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Chen-Mingyu/phototime/internal/app/analyze"
	"github.com/Chen-Mingyu/phototime/internal/app/check"
	"github.com/Chen-Mingyu/phototime/internal/app/repair"
	"github.com/Chen-Mingyu/phototime/internal/app/run"
	"github.com/Chen-Mingyu/phototime/internal/app/verify"
	"github.com/Chen-Mingyu/phototime/internal/config"
	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/infra/exiftool"
	"github.com/Chen-Mingyu/phototime/internal/infra/fsx"
	"github.com/Chen-Mingyu/phototime/internal/meta"
	"github.com/Chen-Mingyu/phototime/internal/scan"
)

const reportName = "phototime_report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "fix":
		code = flowCmd("fix", args[1:])
	case "verify":
		code = flowCmd("verify", args[1:])
	case "check":
		code = checkCmd(args[1:])
	case "analyze":
		code = analyzeCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

// flowCmd 执行 fix 或 verify（两者只差单文件决策机）。
func flowCmd(flow string, args []string) int {
	fl, err := parseFlags(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage()
		return 2
	}
	if fl.Help {
		printUsage()
		return 0
	}
	setupLogging(fl.Verbose)

	eff, errCode := loadConfig(fl)
	if errCode != 0 {
		return errCode
	}

	// 外部工具缺失必须在处理前失败，而不是处理到一半才发现。
	toolPath, err := exiftool.Find(eff.ExiftoolPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "找不到 exiftool：%v\n", err)
		return 1
	}
	tool := exiftool.Tool{Path: toolPath, Timeout: eff.ToolTimeout}

	var proc run.Processor
	buckets := domain.Buckets{Root: eff.Path}
	reader := meta.Reader{Tool: tool}
	writer := meta.Writer{Tool: tool}
	switch flow {
	case "verify":
		proc = verify.Engine{
			Buckets: buckets, Window: eff.Window, Tolerance: eff.Tolerance,
			Reader: reader, Writer: writer,
		}
	default:
		proc = repair.Engine{
			Buckets: buckets, Window: eff.Window,
			Reader: reader, Writer: writer,
		}
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.Execute(context.Background(), eff, flow, proc, obs)

	if err := writeReportFile(eff.Path, rr); err != nil {
		fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", reportName, err)
		emitReport(rr)
		return 1
	}

	emitReport(rr)
	if interactive {
		fmt.Fprintf(progressW, "report: %s\n", filepath.Join(eff.Path, reportName))
	}
	if failedCount(rr) == 0 {
		return 0
	}
	return 1
}

func checkCmd(args []string) int {
	fl, err := parseFlags(args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage()
		return 2
	}
	if fl.Help {
		printUsage()
		return 0
	}
	setupLogging(fl.Verbose)

	eff, errCode := loadConfig(fl)
	if errCode != 0 {
		return errCode
	}

	files, err := scan.Scan(eff.Path, eff.Video, eff.ExcludeDirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "扫描失败：%v\n", err)
		return 1
	}

	sum := check.Run(context.Background(), files, eff.Workers,
		func(done, total int, f domain.MediaFile, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "[%d/%d] FAIL %s: %v\n", done, total, f.RelPath, err)
				return
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] OK   %s\n", done, total, f.RelPath)
		})

	fmt.Fprintf(os.Stderr, "检查完成：total=%d checked=%d corrupted=%d\n",
		sum.Total, sum.Checked, len(sum.Corrupted))

	if fl.Report {
		path, err := check.WriteReport(eff.Path, sum.Corrupted)
		if err != nil {
			fmt.Fprintf(os.Stderr, "写入损坏清单失败：%v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "清单: %s\n", path)
	}

	if len(sum.Corrupted) > 0 {
		return 1
	}
	return 0
}

func analyzeCmd(args []string) int {
	fl, err := parseFlags(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage()
		return 2
	}
	if fl.Help {
		printUsage()
		return 0
	}
	setupLogging(fl.Verbose)

	eff, errCode := loadConfig(fl)
	if errCode != 0 {
		return errCode
	}

	files, err := scan.Scan(eff.Path, eff.Video, eff.ExcludeDirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "扫描失败：%v\n", err)
		return 1
	}

	svc, err := analyze.NewService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "启动 exiftool 失败：%v\n", err)
		return 1
	}
	defer svc.Close()

	sum := analyze.Run(context.Background(), files, eff.Window, svc,
		func(done, total int, _ domain.MediaFile) {
			if done%100 == 0 || done == total {
				fmt.Fprintf(os.Stderr, "进度: %d/%d\n", done, total)
			}
		})

	fmt.Fprintf(os.Stdout, "文件总数: %d\n", sum.Total)
	fmt.Fprintf(os.Stdout, "已有拍摄时间: %d\n", sum.WithDate)
	fmt.Fprintf(os.Stdout, "缺拍摄时间: %d\n", len(sum.Gaps))
	for _, origin := range []domain.Origin{
		domain.OriginWeChat, domain.OriginScreenshot,
		domain.OriginTimestamp, domain.OriginDateOnly,
	} {
		if n := sum.ByOrigin[origin]; n > 0 {
			fmt.Fprintf(os.Stdout, "  可按文件名修复（%s）: %d\n", origin, n)
		}
	}
	if n := sum.ByOrigin[domain.OriginUnknown]; n > 0 {
		fmt.Fprintf(os.Stdout, "  文件名无线索（需人工）: %d\n", n)
	}
	return 0
}

type cliFlags struct {
	Path       string
	Workers    int
	WorkersSet bool
	Video      bool
	VideoSet   bool
	Report     bool
	Verbose    bool
	Help       bool
}

func parseFlags(args []string, allowReport bool) (cliFlags, error) {
	fl := cliFlags{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case isHelp(a):
			fl.Help = true
		case a == "--workers":
			if i+1 >= len(args) {
				return cliFlags{}, fmt.Errorf("--workers 需要一个值")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return cliFlags{}, fmt.Errorf("--workers 需要整数，实际是 %q", args[i])
			}
			fl.Workers = n
			fl.WorkersSet = true
		case strings.HasPrefix(a, "--workers="):
			v := strings.TrimPrefix(a, "--workers=")
			n, err := strconv.Atoi(v)
			if err != nil {
				return cliFlags{}, fmt.Errorf("--workers 需要整数，实际是 %q", v)
			}
			fl.Workers = n
			fl.WorkersSet = true
		case a == "--video":
			fl.Video = true
			fl.VideoSet = true
		case strings.HasPrefix(a, "--video="):
			v := strings.TrimPrefix(a, "--video=")
			switch v {
			case "true":
				fl.Video = true
			case "false":
				fl.Video = false
			default:
				return cliFlags{}, fmt.Errorf("--video 只能是 true 或 false，实际是 %q", v)
			}
			fl.VideoSet = true
		case a == "--report" && allowReport:
			fl.Report = true
		case a == "--verbose":
			fl.Verbose = true
		case strings.HasPrefix(a, "-"):
			return cliFlags{}, fmt.Errorf("未知参数 %q", a)
		default:
			if fl.Path != "" {
				return cliFlags{}, fmt.Errorf("重复的 path：%q 与 %q", fl.Path, a)
			}
			fl.Path = a
		}
	}
	return fl, nil
}

// loadConfig 读取并合并配置；失败时输出错误并返回退出码。
func loadConfig(fl cliFlags) (config.EffectiveConfig, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return config.EffectiveConfig{}, 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:       fl.Path,
		Workers:    fl.Workers,
		WorkersSet: fl.WorkersSet,
		Video:      fl.Video,
		VideoSet:   fl.VideoSet,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return config.EffectiveConfig{}, 1
	}
	return eff, 0
}

func setupLogging(verbose bool) {
	logrus.SetOutput(os.Stderr)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.WarnLevel)
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  phototime fix     [path] [--workers N] [--video[=true|false]] [--verbose]
  phototime verify  [path] [--workers N] [--video[=true|false]] [--verbose]
  phototime check   [path] [--workers N] [--report] [--verbose]
  phototime analyze [path] [--verbose]

命令：
  fix      按文件名时间修复缺失/不可信的拍摄时间，并按结果分类归档
  verify   以文件名时间为基准核验既有拍摄时间，纠偏并归档
  check    只读完整性检查（完整解码每张图片）；--report 落盘损坏清单
  analyze  只读统计：有/无拍摄时间的分布与文件名可修复程度

参数：
  --workers   并发 worker 数（默认 8，范围 [1,32]）
  --video     把 .mp4 纳入处理（默认 false）；支持 --video=false 覆盖配置
  --report    (仅 check) 写入 corrupted_list.txt
  --verbose   输出调试日志（stderr）
  -h, --help  显示帮助

path 未指定时读取当前目录的 phototime.json（必须包含 path 字段）。
`)
}

// emitReport 输出最终结果。
// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：%s\n", formatSummary(rr.Summary))
		for _, it := range rr.Items {
			if it.Success {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", it.Path, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：%s\n", formatSummary(rr.Summary))
}

// formatSummary 把 action 计数拼成稳定顺序的一行。
func formatSummary(s map[string]int) string {
	order := []string{
		domain.ActionSkip,
		domain.ActionFixedWeChat, domain.ActionFixedScreenshot, domain.ActionFixedDate,
		domain.ActionReview, domain.ActionCorrupted,
		domain.ActionVerified, domain.ActionCorrected, domain.ActionNew, domain.ActionUntouched,
		domain.ActionWriteFailed, domain.ActionMoveFailed,
	}
	parts := make([]string, 0, len(s))
	for _, k := range order {
		if n, ok := s[k]; ok && n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	if len(parts) == 0 {
		return "没有需要处理的文件"
	}
	return strings.Join(parts, " ")
}

func failedCount(rr domain.RunReport) int {
	n := 0
	for _, it := range rr.Items {
		if !it.Success {
			n++
		}
	}
	return n
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(root, reportName, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
