package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/imdbscrape/internal/app/run"
	"github.com/John-Robertt/imdbscrape/internal/config"
)

func newURLsCmd(rf *rootFlags) *cobra.Command {
	sf := &scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "只分页与收集，按发现顺序每行输出一个详情页 URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			eff, err := config.LoadEffective(cwd, sf.cliArgs(cmd, rf.configPath))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return &exitError{code: 1}
			}

			urls, pages, err := run.CollectURLs(cmd.Context(), eff, nil)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", run.Humanize(err))
				return &exitError{code: 1}
			}
			out := cmd.OutOrStdout()
			for _, u := range urls {
				fmt.Fprintln(out, u)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "pages=%d urls=%d\n", pages, len(urls))
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&sf.firstURL, "first-url", "", "第一页列表 URL")
	fs.StringVar(&sf.nextURL, "next-url", "", "第二页列表 URL（含 101 偏移）")
	fs.IntVar(&sf.concurrency, "concurrency", config.DefaultConcurrency, "并发数（1-32）")
	fs.DurationVar(&sf.timeout, "timeout", config.DefaultTimeout, "单次抓取超时")
	fs.Float64Var(&sf.rateLimit, "rate-limit", 0, "每秒最多请求数（0 表示不限速）")
	fs.BoolVar(&sf.dedupe, "dedupe", false, "按 URL 去重")
	return cmd
}
