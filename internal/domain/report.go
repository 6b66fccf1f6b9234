package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunReport 是一次运行的对外稳定输出（stdout JSON / phototime_report.json）。
type RunReport struct {
	RunID string `json:"run_id"`
	Root  string `json:"root"`
	Flow  string `json:"flow"` // "fix" | "verify"

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary map[string]int `json:"summary"`
	Items   []FileReport   `json:"items"`
}

// FileReport 是 report 中的单文件条目（RepairOutcome 的可序列化投影）。
type FileReport struct {
	Path    string `json:"path"`
	NewPath string `json:"new_path,omitempty"`
	Action  string `json:"action"`
	Origin  string `json:"origin,omitempty"`
	Date    string `json:"date,omitempty"`
	Success bool   `json:"success"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// NewRunReport 生成带唯一 run_id 的空报告。
func NewRunReport(root, flow string) RunReport {
	return RunReport{
		RunID:     uuid.NewString(),
		Root:      root,
		Flow:      flow,
		StartedAt: time.Now().UTC(),
		Items:     make([]FileReport, 0, 128),
	}
}

// AddOutcome 把一个 RepairOutcome 追加为 report 条目。
func (r *RunReport) AddOutcome(o RepairOutcome) {
	newPath := o.NewPath
	if newPath == o.File.AbsPath {
		newPath = ""
	}
	r.Items = append(r.Items, FileReport{
		Path:      o.File.RelPath,
		NewPath:   newPath,
		Action:    o.Action,
		Origin:    string(o.Origin),
		Date:      o.Date,
		Success:   o.Success,
		ErrorCode: o.ErrCode,
		ErrorMsg:  o.ErrMsg,
	})
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（JSON 输出为 RFC3339 且后缀 Z）
// 2) items 按 path 字典序稳定排序（完成顺序不确定，输出必须确定）
// 3) summary 由 items 重新计算
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Path < r.Items[j].Path
	})

	s := make(map[string]int, 8)
	for _, it := range r.Items {
		s[it.Action]++
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出稳定性（目前透传默认行为）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
