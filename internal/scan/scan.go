package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Chen-Mingyu/phototime/internal/domain"
)

// Scan 扫描 root 下的媒体文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：全部 bucket 目录（两套流程的都排除），保证重复运行幂等、不自吞产物
// - excludeDirs：来自配置文件，相对 root 解析（绝对路径按绝对处理）
// - includeVideo=false 时 .mp4 不参与
//
// 注意：扫描只发生一次、串行进行，且只做 stat，不读文件内容。
func Scan(root string, includeVideo bool, excludeDirs []string) ([]domain.MediaFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.MediaFile, 0, 128)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// root 本身读不了是硬错误；下层目录/条目读不了只跳过，
			// 不允许单个坏目录打断整棵树的扫描。
			if path == root {
				return walkErr
			}
			logrus.WithField("path", path).WithError(walkErr).Warn("扫描跳过不可读条目")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// 统一的排除判断：目录用 SkipDir，文件直接跳过。
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		kind, ok := domain.KindForExt(ext, includeVideo)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.MediaFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     ext,
			Kind:    kind,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	names := domain.AllBucketNames()
	excluded := make([]string, 0, len(names)+len(excludeDirs))
	for _, n := range names {
		excluded = append(excluded, filepath.Clean(filepath.Join(root, n)))
	}

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
