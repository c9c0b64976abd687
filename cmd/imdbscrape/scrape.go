package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/imdbscrape/internal/app/run"
	"github.com/John-Robertt/imdbscrape/internal/config"
	"github.com/John-Robertt/imdbscrape/internal/domain"
)

type scrapeFlags struct {
	firstURL    string
	nextURL     string
	output      string
	concurrency int
	timeout     time.Duration
	rateLimit   float64
	onError     string
	dedupe      bool
	dumpHTML    string
}

func (sf *scrapeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&sf.firstURL, "first-url", "", "第一页列表 URL")
	fs.StringVar(&sf.nextURL, "next-url", "", "第二页列表 URL（含 101 偏移）")
	fs.StringVarP(&sf.output, "output", "o", "", "数据集输出路径（.csv/.jsonl/.db）")
	fs.IntVar(&sf.concurrency, "concurrency", config.DefaultConcurrency, "并发数（1-32）")
	fs.DurationVar(&sf.timeout, "timeout", config.DefaultTimeout, "单次抓取超时")
	fs.Float64Var(&sf.rateLimit, "rate-limit", 0, "每秒最多请求数（0 表示不限速）")
	fs.StringVar(&sf.onError, "on-error", config.OnErrorSkip, "单条失败时：skip|abort")
	fs.BoolVar(&sf.dedupe, "dedupe", false, "按 URL 去重")
	fs.StringVar(&sf.dumpHTML, "dump-html", "", "把抓到的 HTML 保存到该目录")
}

// cliArgs 只把用户显式给出的 flag 标为 Set，其余交给配置文件与默认值。
func (sf *scrapeFlags) cliArgs(cmd *cobra.Command, configPath string) config.CLIArgs {
	changed := cmd.Flags().Changed
	return config.CLIArgs{
		ConfigPath:     configPath,
		FirstURL:       sf.firstURL,
		NextURL:        sf.nextURL,
		Output:         sf.output,
		OutputSet:      changed("output"),
		Concurrency:    sf.concurrency,
		ConcurrencySet: changed("concurrency"),
		Timeout:        sf.timeout,
		TimeoutSet:     changed("timeout"),
		RateLimit:      sf.rateLimit,
		RateLimitSet:   changed("rate-limit"),
		OnError:        sf.onError,
		OnErrorSet:     changed("on-error"),
		Dedupe:         sf.dedupe,
		DedupeSet:      changed("dedupe"),
		DumpHTML:       sf.dumpHTML,
		DumpHTMLSet:    changed("dump-html"),
	}
}

func newScrapeCmd(rf *rootFlags) *cobra.Command {
	sf := &scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "分页、收集详情页并写出数据集",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if code := scrape(cmd, rf, sf); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func scrape(cmd *cobra.Command, rf *rootFlags, sf *scrapeFlags) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, sf.cliArgs(cmd, rf.configPath))
	if err != nil {
		emitReport(reportForConfigError(sf, err))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		obs = ui
	}

	res := run.ExecuteWithObserver(cmd.Context(), eff, nil, obs)
	if ui != nil {
		ui.Close()
	}
	rr := res.Report

	reportPath := reportPathFor(eff.Output)
	if err := writeReportFile(reportPath, rr); err != nil {
		fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
		emitReport(rr)
		return 1
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff.Output, reportPath)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// reportPathFor 报告与数据集同目录：movies.csv -> movies.report.json。
func reportPathFor(output string) string {
	ext := filepath.Ext(output)
	return output[:len(output)-len(ext)] + ".report.json"
}

func reportForConfigError(sf *scrapeFlags, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		FirstURL:   sf.firstURL,
		Output:     sf.output,
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.ItemResult{domain.SyntheticFailed(config.Code(err), err.Error())},
	}
	rr.Finalize()
	return rr
}
