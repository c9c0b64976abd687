package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// exitError 让子命令携带退出码返回（报告已输出，无需 cobra 再打印错误）。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "imdbscrape",
		Short:         "从 IMDb 列表页抓取电影元数据并写出数据集",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(rf.verbose)
		},
	}
	root.PersistentFlags().StringVar(&rf.configPath, "config", "", "配置文件路径（默认 ./imdbscrape.json）")
	root.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "输出调试日志到 stderr")

	root.AddCommand(newScrapeCmd(rf), newURLsCmd(rf), newShowCmd())
	return root
}

// setupLogging 日志一律写 stderr；stdout 保留给 JSON 报告与命令输出。
func setupLogging(verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.WarnLevel)
}
