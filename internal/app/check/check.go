package check

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/infra/fsx"
	"github.com/Chen-Mingyu/phototime/internal/infra/imgx"
)

// verifyFunc 可替换，便于注入解码故障。
var verifyFunc = imgx.Verify

// ReportName 是落盘的损坏清单文件名。
const ReportName = "corrupted_list.txt"

// Item 是一条损坏记录。
type Item struct {
	Name   string
	Path   string
	Reason string
}

// Summary 是一次完整性检查的汇总。只读操作：不写标签、不移动文件。
type Summary struct {
	Total     int
	Checked   int
	Corrupted []Item
}

// Run 对全部图片做完整解码校验，固定 worker 并发。
// 视频不参与（没有进程内解码路径，计入 Total 但不计 Checked）。
// onDone 按完成顺序回调；取消后未开始的文件不再派发。
func Run(ctx context.Context, files []domain.MediaFile, workers int, onDone func(done, total int, f domain.MediaFile, err error)) Summary {
	if workers < 1 {
		workers = 1
	}

	type result struct {
		file domain.MediaFile
		err  error
	}

	jobs := make(chan domain.MediaFile)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				results <- result{file: f, err: verifyFunc(f.AbsPath)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			if !f.Kind.CorruptibleByDecode() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	sum := Summary{Total: len(files)}
	for r := range results {
		sum.Checked++
		if r.err != nil {
			sum.Corrupted = append(sum.Corrupted, Item{
				Name:   filepath.Base(r.file.AbsPath),
				Path:   r.file.AbsPath,
				Reason: r.err.Error(),
			})
		}
		if onDone != nil {
			onDone(sum.Checked, len(files), r.file, r.err)
		}
	}

	// 完成顺序不稳定，清单按名字排序输出。
	sort.Slice(sum.Corrupted, func(i, j int) bool { return sum.Corrupted[i].Name < sum.Corrupted[j].Name })
	return sum
}

// WriteReport 把损坏清单原子写入 <root>/corrupted_list.txt。
// 每条记录三行：文件名、路径、原因；记录之间空行分隔。
func WriteReport(root string, items []Item) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "损坏文件共 %d 个\n\n", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", it.Name, it.Path, it.Reason)
	}

	if err := fsx.WriteFileAtomicReplace(root, ReportName, []byte(b.String())); err != nil {
		return "", err
	}
	return filepath.Join(root, ReportName), nil
}
