package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Chen-Mingyu/phototime/internal/domain"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 phototime.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultWorkers 是并发 worker 数的内置默认值。
	DefaultWorkers = 8
	// DefaultToleranceSeconds 是 verify 流程的时间容差（吸收两个来源间的舍入/时区抖动）。
	DefaultToleranceSeconds = 120
	// DefaultToolTimeoutSeconds 是单次 exiftool 调用的超时上限。
	// 参考实现不设超时（工具挂死会卡住一个 worker），这里显式收口。
	DefaultToolTimeoutSeconds = 30
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息，
// 保证覆盖优先级可实现（例如 --video=false 必须能覆盖 config.video=true）。
type CLIArgs struct {
	Path string

	Workers    int
	WorkersSet bool

	Video    bool
	VideoSet bool
}

// FileConfig 对应 phototime.json 的解析结构。
type FileConfig struct {
	Path        string   `json:"path"`
	Workers     int      `json:"workers"`
	Video       *bool    `json:"video"`
	ExcludeDirs []string `json:"exclude_dirs"`

	ExiftoolPath           string `json:"exiftool_path"`
	ExiftoolTimeoutSeconds *int   `json:"exiftool_timeout_seconds"`

	// 合理性窗口与容差是策略，不是魔法数：允许按库调整。
	PlausibleAfter   *int64 `json:"plausible_after"`
	PlausibleBefore  *int64 `json:"plausible_before"`
	ToleranceSeconds *int   `json:"tolerance_seconds"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，
// 不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Workers     int
	Video       bool
	ExcludeDirs []string

	ExiftoolPath string
	ToolTimeout  time.Duration

	Window    domain.PlausibleWindow
	Tolerance time.Duration
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/phototime.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/phototime.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：CLI > config > 内置默认。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, "phototime.json")

		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		// 不存在也不报错：CLI 已经给了 path。
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, "phototime.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	workers := fc.Workers
	if cli.WorkersSet {
		workers = cli.Workers
	}
	if workers == 0 {
		workers = DefaultWorkers
	}
	// 范围约定 [1, 32]；超出截断。
	if workers < 1 {
		workers = 1
	}
	if workers > 32 {
		workers = 32
	}

	video := false
	if cli.VideoSet {
		video = cli.Video
	} else if fc.Video != nil {
		video = *fc.Video
	}

	window := domain.DefaultPlausibleWindow()
	if fc.PlausibleAfter != nil {
		window.After = *fc.PlausibleAfter
	}
	if fc.PlausibleBefore != nil {
		window.Before = *fc.PlausibleBefore
	}
	if window.After >= window.Before {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath,
			Err: fmt.Errorf("plausible_after(%d) 必须小于 plausible_before(%d)", window.After, window.Before)}
	}

	tolerance := DefaultToleranceSeconds
	if fc.ToleranceSeconds != nil {
		tolerance = *fc.ToleranceSeconds
	}
	if tolerance < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath,
			Err: fmt.Errorf("tolerance_seconds 不能为负：%d", tolerance)}
	}

	timeout := DefaultToolTimeoutSeconds
	if fc.ExiftoolTimeoutSeconds != nil {
		timeout = *fc.ExiftoolTimeoutSeconds
	}
	if timeout < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath,
			Err: fmt.Errorf("exiftool_timeout_seconds 不能为负：%d", timeout)}
	}

	return EffectiveConfig{
		Path:         absPath,
		Workers:      workers,
		Video:        video,
		ExcludeDirs:  append([]string(nil), fc.ExcludeDirs...),
		ExiftoolPath: strings.TrimSpace(fc.ExiftoolPath),
		ToolTimeout:  time.Duration(timeout) * time.Second,
		Window:       window,
		Tolerance:    time.Duration(tolerance) * time.Second,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 文件不存在返回 (zero, false, nil)；存在但无法解析返回错误。
func readFileConfig(path string) (FileConfig, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return FileConfig{}, true, err
	}

	var fc FileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
