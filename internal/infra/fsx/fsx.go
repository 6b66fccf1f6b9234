package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 遇到 EXDEV 必须失败并提示用户，不做隐式 copy+delete。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q；请确保源与目标在同一文件系统：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 幂等创建目录；路径已被文件占用时返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// dirLocks 把“探测空闲名 + rename”这对操作按目标目录串行化：
// 多个 worker 同时往一个 bucket 移动同名文件时，不允许选中同一个后缀名。
var dirLocks sync.Map // map[string]*sync.Mutex

func lockDir(dir string) *sync.Mutex {
	v, _ := dirLocks.LoadOrStore(filepath.Clean(dir), &sync.Mutex{})
	return v.(*sync.Mutex)
}

// MoveNoClobber 把 src 移入 dstDir（不存在则创建）。
// 命名冲突时在扩展名前追加 _1、_2……直到空闲；绝不覆盖既有文件。
// 返回最终落点的绝对路径。
func MoveNoClobber(src, dstDir string) (string, error) {
	if err := EnsureDir(dstDir); err != nil {
		return "", err
	}

	name := filepath.Base(src)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	mu := lockDir(dstDir)
	mu.Lock()
	defer mu.Unlock()

	dst := filepath.Join(dstDir, name)
	for counter := 1; pathExists(dst); counter++ {
		dst = filepath.Join(dstDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}
	if err := Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// RenameWithExt 把 src 原地改成 newExt 扩展名（扩展名修正用）。
// 目标名被占用时追加 _fix1、_fix2……；同样按目录串行化探测。
func RenameWithExt(src, newExt string) (string, error) {
	dir := filepath.Dir(src)
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))

	mu := lockDir(dir)
	mu.Lock()
	defer mu.Unlock()

	dst := filepath.Join(dir, base+newExt)
	for counter := 1; pathExists(dst); counter++ {
		dst = filepath.Join(dir, fmt.Sprintf("%s_fix%d%s", base, counter, newExt))
	}
	if err := Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func pathExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename，覆盖同名）。
// 用于 report / corrupted_list 等内部产物；媒体文件移动不走这里。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 临时文件必须与目标同目录，保证 rename 原子性；前缀带 '.' 避免污染目录视图。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（平台语义差异大，失败不当作错误）。
	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
