package analyze

import (
	"context"
	"fmt"
	"sync"

	betool "github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"

	"github.com/Chen-Mingyu/phototime/internal/domain"
	"github.com/Chen-Mingyu/phototime/internal/infra/exiftool"
	"github.com/Chen-Mingyu/phototime/internal/meta"
	"github.com/Chen-Mingyu/phototime/internal/namedate"
)

// DateSource 提供单个文件的既有拍摄时间（canonical 形态；没有返回空串）。
type DateSource interface {
	Date(path string) string
}

// Service 包装常驻 exiftool 进程做批量只读读取：
// 一次分析几千个文件，逐个拉子进程太慢。底层进程非线程安全，用锁收口。
type Service struct {
	et *betool.Exiftool
	mu sync.Mutex
}

// NewService 启动常驻 exiftool 进程。
func NewService() (*Service, error) {
	et, err := betool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("初始化 exiftool 失败：%w", err)
	}
	return &Service{et: et}, nil
}

// Close 结束底层进程。
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.et != nil {
		s.et.Close()
		s.et = nil
	}
}

// Date 按固定的候选字段顺序取第一个能规范化的时间。
func (s *Service) Date(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := s.et.ExtractMetadata(path)
	for _, fi := range infos {
		if fi.Err != nil {
			logrus.WithField("path", path).WithError(fi.Err).Debug("元数据读取失败")
			continue
		}
		for _, key := range exiftool.ReadDateKeys {
			raw, ok := fi.Fields[key].(string)
			if !ok {
				continue
			}
			if d, ok := meta.Normalize(raw); ok {
				return d
			}
		}
	}
	return ""
}

// Gap 是一个缺时间的文件及其“文件名可救程度”。
// Origin==OriginUnknown 表示文件名也给不出时间，只能人工处理。
type Gap struct {
	Path   string
	Origin domain.Origin
}

// Summary 是一次分析的汇总。纯只读：不写标签、不移动文件。
type Summary struct {
	Total    int
	WithDate int
	Gaps     []Gap
	ByOrigin map[domain.Origin]int
}

// Run 统计有/无既有时间的文件，并把缺时间的按文件名来源分类。
// 串行执行（常驻进程本身是串行的），取消后剩余文件不再读取。
func Run(ctx context.Context, files []domain.MediaFile, window domain.PlausibleWindow, src DateSource, onDone func(done, total int, f domain.MediaFile)) Summary {
	sum := Summary{Total: len(files), ByOrigin: make(map[domain.Origin]int)}

	for i, f := range files {
		if ctx.Err() != nil {
			break
		}

		if src.Date(f.AbsPath) != "" {
			sum.WithDate++
		} else {
			cand := namedate.Parse(f.Base, window)
			sum.Gaps = append(sum.Gaps, Gap{Path: f.AbsPath, Origin: cand.Origin})
			sum.ByOrigin[cand.Origin]++
		}

		if onDone != nil {
			onDone(i+1, len(files), f)
		}
	}
	return sum
}
