// Package dataset 把 MovieRecord 序列展开为表格（固定列 + is_<genre> 独热列），并写出为 CSV / JSONL / SQLite。
//
// 约束：
// - 列顺序固定：url、domain.Columns、再按字典序排列的 is_<genre>
// - 缺失值在表中为 nil；CSV 中为空串；SQLite 中为 NULL
package dataset

import (
	"sort"
	"strings"

	"github.com/John-Robertt/imdbscrape/internal/domain"
)

// GenreSeparator 是 genres 列在文本格式（CSV）中的拼接符。
const GenreSeparator = "|"

// Table 是展开后的数据集；Rows[i] 与 Columns 等长，元素为 nil、string、int64、float64 之一。
type Table struct {
	Columns []string
	Rows    [][]any
}

// Genres 返回所有记录中出现过的类型，去重并排序。
func Genres(records []domain.MovieRecord) []string {
	seen := map[string]struct{}{}
	for _, r := range records {
		for _, g := range r.Genres {
			seen[g] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// GenreColumn 返回某个类型对应的独热列名。
func GenreColumn(genre string) string { return "is_" + genre }

// Build 按固定列展开记录；genres 为空时由 Genres(records) 推导。
func Build(records []domain.MovieRecord, genres []string) Table {
	if len(genres) == 0 {
		genres = Genres(records)
	}

	cols := make([]string, 0, 1+len(domain.Columns)+len(genres))
	cols = append(cols, "url")
	cols = append(cols, domain.Columns...)
	for _, g := range genres {
		cols = append(cols, GenreColumn(g))
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row := make([]any, 0, len(cols))
		row = append(row, r.URL)
		row = append(row, fields(r)...)
		for _, g := range genres {
			row = append(row, hasGenre(r.Genres, g))
		}
		rows = append(rows, row)
	}
	return Table{Columns: cols, Rows: rows}
}

// fields 与 domain.Columns 一一对应。
func fields(r domain.MovieRecord) []any {
	var country any
	if r.Country.Known() {
		country = r.Country.String()
	}
	var genres any
	if r.Genres != nil {
		genres = strings.Join(r.Genres, GenreSeparator)
	}
	return []any{
		str(r.Title),
		country,
		intp(r.RuntimeMinutes),
		int64p(r.Budget),
		int64p(r.GlobalGross),
		str(r.MPAARating),
		datep(r.JapanReleaseDate),
		datep(r.USAReleaseDate),
		genres,
		floatp(r.IMDbUserRating),
		intp(r.IMDbUserRatingCount),
		intp(r.OscarWins),
		intp(r.NonOscarWins),
		intp(r.Metascore),
	}
}

func hasGenre(genres []string, g string) int64 {
	for _, x := range genres {
		if x == g {
			return 1
		}
	}
	return 0
}
