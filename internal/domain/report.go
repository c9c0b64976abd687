package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ErrCodeFetchFailed      = "fetch_failed"
	ErrCodeParseFailed      = "parse_failed"
	ErrCodeIOFailed         = "io_failed"
	ErrCodeCanceled         = "canceled"
	ErrCodeConfigNotFound   = "config_not_found"
	ErrCodeConfigInvalid    = "config_invalid"
	ErrCodeConfigMissingURL = "config_missing_url"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	FirstURL string `json:"first_url"`
	Output   string `json:"output"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ListingPages int `json:"listing_pages"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ItemResult 对应一个详情页（或一个合成的运行级失败，Index=-1）。
type ItemResult struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按发现顺序（Index）；Index<0 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Index
		b := r.Items[j].Index
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性：items 为空时输出 [] 而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	return json.Marshal(a)
}

// SyntheticFailed 构造一个运行级失败条目（配置错误、分页失败等）。
func SyntheticFailed(code, msg string) ItemResult {
	return ItemResult{
		Index:     -1,
		Status:    StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
