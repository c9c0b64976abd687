package dataset

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/imdbscrape/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleRecords() []domain.MovieRecord {
	jp := time.Date(2001, time.July, 20, 0, 0, 0, 0, time.UTC)
	return []domain.MovieRecord{
		{
			URL:              "https://www.imdb.com/title/tt0245429/",
			Title:            ptr("Spirited Away"),
			Country:          domain.CountryJapan,
			RuntimeMinutes:   ptr(125),
			Budget:           ptr(int64(17773620)),
			MPAARating:       ptr("PG"),
			JapanReleaseDate: &jp,
			Genres:           []string{"Animation", "Adventure", "Family"},
			IMDbUserRating:   ptr(8.6),
			OscarWins:        ptr(1),
			Metascore:        ptr(96),
		},
		{
			URL:     "https://www.imdb.com/title/tt0000002/",
			Country: domain.CountryUnknown,
			Genres:  []string{"Drama"},
		},
	}
}

func TestGenres_SortedUnique(t *testing.T) {
	got := Genres(sampleRecords())
	want := []string{"Adventure", "Animation", "Drama", "Family"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("类型列表不一致 (-want +got):\n%s", diff)
	}
}

func TestBuild_ColumnsAndOneHot(t *testing.T) {
	tab := Build(sampleRecords(), nil)

	require.Equal(t, "url", tab.Columns[0])
	require.Equal(t, domain.Columns, tab.Columns[1:1+len(domain.Columns)])
	require.Equal(t, []string{"is_Adventure", "is_Animation", "is_Drama", "is_Family"}, tab.Columns[1+len(domain.Columns):])
	require.Len(t, tab.Rows, 2)

	first := tab.Rows[0]
	require.Len(t, first, len(tab.Columns))
	require.Equal(t, "Spirited Away", first[1])
	require.Equal(t, "Japan", first[2])
	require.Equal(t, "2001-07-20", first[7])
	require.Nil(t, first[8], "usa_release_date 应为空")
	require.Equal(t, "Animation|Adventure|Family", first[9])
	require.Equal(t, []any{int64(1), int64(1), int64(0), int64(1)}, first[1+len(domain.Columns):])

	second := tab.Rows[1]
	require.Nil(t, second[1], "缺失标题应为 nil")
	require.Nil(t, second[2], "未知国家应为 nil")
	require.Equal(t, []any{int64(0), int64(0), int64(1), int64(0)}, second[1+len(domain.Columns):])
}

func TestBuild_ExplicitGenres(t *testing.T) {
	tab := Build(sampleRecords(), []string{"Horror"})
	require.Equal(t, "is_Horror", tab.Columns[len(tab.Columns)-1])
	require.Equal(t, int64(0), tab.Rows[0][len(tab.Columns)-1])
}

func TestWriteCSV_EmptyCellsForMissing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Build(sampleRecords(), nil)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "budget", rows[0][4])
	require.Equal(t, "17773620", rows[1][4])
	require.Equal(t, "8.6", rows[1][10])
	require.Equal(t, "", rows[2][1])
}

func TestWriteFile_JSONLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.jsonl")
	recs := sampleRecords()
	require.NoError(t, WriteFile(context.Background(), path, recs))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadJSONL(f)
	require.NoError(t, err)

	if diff := cmp.Diff(recs, got); diff != "" {
		t.Fatalf("JSONL 读回不一致 (-want +got):\n%s", diff)
	}
}

func TestWriteFile_SQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movies.db")
	require.NoError(t, WriteFile(context.Background(), path, sampleRecords()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM movies`).Scan(&n))
	require.Equal(t, 2, n)

	var title sql.NullString
	var budget sql.NullInt64
	require.NoError(t, db.QueryRow(`SELECT title, budget FROM movies WHERE id = 1`).Scan(&title, &budget))
	require.Equal(t, "Spirited Away", title.String)
	require.Equal(t, int64(17773620), budget.Int64)

	require.NoError(t, db.QueryRow(`SELECT title FROM movies WHERE id = 2`).Scan(&title))
	require.False(t, title.Valid, "缺失标题应为 NULL")

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM movie_genres WHERE movie_id = 1`).Scan(&n))
	require.Equal(t, 3, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "不应残留临时文件")
}

func TestWriteFile_UnknownExtension(t *testing.T) {
	err := WriteFile(context.Background(), filepath.Join(t.TempDir(), "movies.xlsx"), nil)
	require.Error(t, err)
}
