package exiftool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// 错误分类：调用方按 Kind 决定降级策略（读路径一律降级为“无日期”，
// 写路径原样上抛并带上工具的 stderr 文本）。
const (
	KindNotFound  = "tool_not_found"
	KindFailed    = "tool_failed"
	KindTimeout   = "tool_timeout"
	KindBadOutput = "tool_bad_output"
)

// Error 是外部工具调用的结构化错误。
type Error struct {
	Kind   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return "找不到 exiftool：请安装并加入 PATH，或在 phototime.json 设置 exiftool_path"
	case KindTimeout:
		return fmt.Sprintf("exiftool 调用超时：%v", e.Err)
	case KindBadOutput:
		return fmt.Sprintf("exiftool 输出无法解析：%v", e.Err)
	default:
		if strings.TrimSpace(e.Stderr) != "" {
			return fmt.Sprintf("exiftool 退出异常：%s", strings.TrimSpace(e.Stderr))
		}
		return fmt.Sprintf("exiftool 退出异常：%v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind 从 error 中提取分类；非 *Error 返回空串。
func ErrKind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Tool 是一次性子进程模式的 exiftool 包装（每次调用一个有界生命周期进程）。
type Tool struct {
	Path    string
	Timeout time.Duration // <=0 表示不限时
}

// Find 定位 exiftool 可执行文件：
// 1) 配置显式指定的路径
// 2) PATH
// 3) 本程序可执行文件同目录（Windows 上常见的摆放方式）
func Find(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", &Error{Kind: KindNotFound, Err: fmt.Errorf("exiftool_path 无效：%q", explicit)}
	}

	if p, err := exec.LookPath("exiftool"); err == nil {
		return p, nil
	}

	if self, err := os.Executable(); err == nil {
		dir := filepath.Dir(self)
		for _, name := range []string{"exiftool", "exiftool.exe"} {
			local := filepath.Join(dir, name)
			if _, err := os.Stat(local); err == nil {
				return local, nil
			}
		}
	}

	return "", &Error{Kind: KindNotFound}
}

// ReadDateKeys 是读取时的候选字段顺序：第一个规范化成功的值生效。
// 顺序有含义（拍摄时间 > 各种创建时间 > 修改时间），不要改排。
var ReadDateKeys = []string{
	"DateTimeOriginal",
	"CreateDate",
	"MediaCreateDate",
	"TrackCreateDate",
	"EncodedDate",
	"TaggedDate",
	"ContentCreateDate",
	"CreationDate",
	"Keys:CreationDate",
	"ModifyDate",
	"MediaModifyDate",
	"TrackModifyDate",
}

func buildReadArgs(path string) []string {
	args := []string{
		"-j",
		"-api", "QuickTimeUTC=1",
		"-api", "LargeFileSupport=1",
		"-d", "%Y:%m:%d %H:%M:%S",
	}
	for _, k := range ReadDateKeys {
		args = append(args, "-"+k)
	}
	return append(args, path)
}

func buildWriteArgs(fields []string, date, path string) []string {
	args := []string{
		"-overwrite_original",
		"-api", "QuickTimeUTC=1",
		"-api", "LargeFileSupport=1",
	}
	for _, f := range fields {
		args = append(args, fmt.Sprintf("-%s=%s", f, date))
	}
	return append(args, path)
}

// ReadDates 以 JSON 模式读取候选日期字段，返回 key->原始文本。
// 任何失败（非零退出/超时/坏输出）都返回 *Error；调用方应把它当“没读到”。
func (t Tool) ReadDates(ctx context.Context, path string) (map[string]string, error) {
	stdout, err := t.run(ctx, buildReadArgs(path))
	if err != nil {
		return nil, err
	}

	var arr []map[string]any
	if e := json.Unmarshal(stdout, &arr); e != nil {
		return nil, &Error{Kind: KindBadOutput, Err: e}
	}
	if len(arr) == 0 {
		return map[string]string{}, nil
	}

	out := make(map[string]string, len(arr[0]))
	for k, v := range arr[0] {
		switch x := v.(type) {
		case string:
			out[k] = x
		default:
			out[k] = fmt.Sprintf("%v", x)
		}
	}
	return out, nil
}

// WriteDate 把 date 写入给定字段集合。
// 非零退出即写失败：带上工具的原始 stderr 文本，绝不自动重试。
func (t Tool) WriteDate(ctx context.Context, path, date string, fields []string) error {
	_, err := t.run(ctx, buildWriteArgs(fields, date, path))
	return err
}

func (t Tool) run(ctx context.Context, args []string) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.WithField("args", strings.Join(args, " ")).Debug("exiftool 调用")

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: KindTimeout, Stderr: stderr.String(), Err: ctx.Err()}
		}
		logrus.WithField("stderr", strings.TrimSpace(stderr.String())).Debug("exiftool 退出异常")
		return nil, &Error{Kind: KindFailed, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
