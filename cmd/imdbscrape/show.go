package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/imdbscrape/internal/dataset"
	"github.com/John-Robertt/imdbscrape/internal/domain"
)

// showColumns 是 show 命令展示的列（数据集列的子集，终端放得下）。
var showColumns = []string{
	"title",
	"country",
	"runtime_minutes",
	"japan_release_date",
	"usa_release_date",
	"imdb_user_rating",
	"metascore",
}

func newShowCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show <dataset.jsonl>",
		Short: "以表格查看 JSONL 数据集",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := dataset.ReadJSONL(f)
			if err != nil {
				return fmt.Errorf("读取数据集失败：%w", err)
			}
			renderRecords(cmd.OutOrStdout(), records, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "最多显示的行数（0 表示全部）")
	return cmd
}

func renderRecords(w io.Writer, records []domain.MovieRecord, limit int) {
	t := dataset.Build(records, nil)
	pick := make([]int, 0, len(showColumns))
	for _, name := range showColumns {
		for i, c := range t.Columns {
			if c == name {
				pick = append(pick, i)
				break
			}
		}
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"#"}
	for _, i := range pick {
		header = append(header, t.Columns[i])
	}
	tw.AppendHeader(header)

	for n, row := range t.Rows {
		if limit > 0 && n >= limit {
			break
		}
		r := table.Row{n + 1}
		for _, i := range pick {
			r = append(r, dataset.Text(row[i]))
		}
		tw.AppendRow(r)
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d 条", len(records))})
	tw.Render()
}
