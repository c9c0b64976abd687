package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/infra/fsx"
)

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：processed=%d skipped=%d failed=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			renderFailures(os.Stderr, rr)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"url":  it.URL,
			"code": it.ErrorCode,
		}).Warn(it.ErrorMsg)
	}
	fmt.Fprintf(os.Stderr, "完成：processed=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
}

// renderFailures 以表格列出失败条目；合成条目（Index<0）没有 URL，用 "-" 占位。
func renderFailures(w io.Writer, rr domain.RunReport) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "URL", "错误码", "原因"})
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		idx, u := "-", it.URL
		if it.Index >= 0 {
			idx = fmt.Sprint(it.Index + 1)
		}
		if u == "" {
			u = "-"
		}
		tw.AppendRow(table.Row{idx, u, it.ErrorCode, truncate(it.ErrorMsg, 100)})
	}
	tw.Render()
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), b)
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

func emitLocations(w io.Writer, output, reportPath string) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "dataset: %s\n", output)
	fmt.Fprintf(w, "report: %s\n", reportPath)
}
