package dataset

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/infra/fsx"
)

//go:embed schema.sql
var schema string

type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSONL  Format = "jsonl"
	FormatSQLite Format = "sqlite"
)

// FormatOf 由扩展名决定输出格式：.csv / .jsonl / .db、.sqlite。
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("无法从扩展名判断输出格式：%q（支持 .csv / .jsonl / .db）", path)
	}
}

// WriteFile 原子写出数据集：中途失败时目标文件保持原样。
func WriteFile(ctx context.Context, path string, records []domain.MovieRecord) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}

	if format == FormatSQLite {
		return writeSQLiteFile(ctx, dir, name, records)
	}

	f, err := fsx.Create(dir, name)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	switch format {
	case FormatCSV:
		err = WriteCSV(bw, Build(records, nil))
	case FormatJSONL:
		err = WriteJSONL(bw, records)
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

// WriteCSV 写出表头与每一行；缺失值为空串。
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = Text(row[i])
			}
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL 每条记录一行 JSON（保留原始结构，不展开独热列）。
func WriteJSONL(w io.Writer, records []domain.MovieRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadJSONL 读取 WriteJSONL 的输出；空行忽略。
func ReadJSONL(r io.Reader) ([]domain.MovieRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []domain.MovieRecord
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var rec domain.MovieRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("第 %d 行：%w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeSQLiteFile 先在同目录建临时库，写完后 rename 到目标名。
func writeSQLiteFile(ctx context.Context, dir, name string, records []domain.MovieRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, name)
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		return &fsx.PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	if err := WriteSQLite(ctx, tmpName, records); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := fsx.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteSQLite 在 path 建库并写入 movies 与 movie_genres 两张表。
func WriteSQLite(ctx context.Context, path string, records []domain.MovieRecord) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("建表失败：%w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	cols := append([]string{"id", "url"}, domain.Columns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insMovie, err := tx.PrepareContext(ctx,
		"INSERT INTO movies ("+strings.Join(cols, ", ")+") VALUES ("+marks+")")
	if err != nil {
		return err
	}
	defer insMovie.Close()
	insGenre, err := tx.PrepareContext(ctx, "INSERT INTO movie_genres (movie_id, genre, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer insGenre.Close()

	for i, r := range records {
		id := int64(i + 1)
		args := append([]any{id, r.URL}, fields(r)...)
		if _, err := insMovie.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("写入 %s 失败：%w", r.URL, err)
		}
		for pos, g := range r.Genres {
			if _, err := insGenre.ExecContext(ctx, id, g, pos); err != nil {
				return fmt.Errorf("写入 %s 的类型失败：%w", r.URL, err)
			}
		}
	}
	return tx.Commit()
}
