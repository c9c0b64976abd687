// Package assemble 把一个详情页 URL 组装为一条 domain.MovieRecord。
//
// 约束：
// - 每条记录恰好抓取一次详情页；只有 Country=Japan 时额外抓取一次发行信息页
// - 不重试；抓取失败与文法不符都包装为 *RecordError 交给上层决定跳过或中止
package assemble

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/extract"
	"github.com/John-Robertt/imdbscrape/internal/fetch"
	"github.com/John-Robertt/imdbscrape/internal/normalize"
)

var tracer = otel.Tracer("github.com/John-Robertt/imdbscrape/internal/assemble")

const (
	StageFetch = "fetch"
	StageParse = "parse"
)

// RecordError 是单条记录的可追溯错误。
// 上层据此把失败归类为 fetch_failed / parse_failed，并写入 report。
type RecordError struct {
	URL   string
	Stage string // "fetch" 或 "parse"
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("url=%s stage=%s: %v", e.URL, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ErrorCode 映射为 report 中的 error_code。
func (e *RecordError) ErrorCode() string {
	if e.Stage == StageParse {
		return domain.ErrCodeParseFailed
	}
	return domain.ErrCodeFetchFailed
}

// Assembler 组合抓取与字段提取。Rates 为空时使用 normalize.DefaultRates。
type Assembler struct {
	Fetcher fetch.Fetcher
	Rates   normalize.Rates
}

// Record 抓取 detailURL 并返回完整的记录。
func (a *Assembler) Record(ctx context.Context, detailURL string) (domain.MovieRecord, error) {
	ctx, span := tracer.Start(ctx, "record", trace.WithAttributes(attribute.String("url", detailURL)))
	defer span.End()

	rec, err := a.record(ctx, detailURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assemble failed")
		return domain.MovieRecord{}, err
	}
	span.SetAttributes(attribute.String("country", rec.Country.String()))
	return rec, nil
}

func (a *Assembler) record(ctx context.Context, detailURL string) (domain.MovieRecord, error) {
	doc, err := a.Fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return domain.MovieRecord{}, &RecordError{URL: detailURL, Stage: StageFetch, Err: err}
	}

	rates := a.Rates
	if len(rates) == 0 {
		rates = normalize.DefaultRates()
	}

	rec := domain.MovieRecord{
		URL:          detailURL,
		Title:        extract.Title(doc),
		Country:      extract.Country(doc),
		MPAARating:   extract.MPAARating(doc),
		Genres:       extract.Genres(doc),
		OscarWins:    extract.OscarWins(doc),
		NonOscarWins: extract.NonOscarWins(doc),
	}

	steps := []func() error{
		func() (err error) { rec.RuntimeMinutes, err = extract.RuntimeMinutes(doc); return },
		func() (err error) { rec.Budget, err = extract.Budget(doc, rates); return },
		func() (err error) { rec.GlobalGross, err = extract.GlobalGross(doc, rates); return },
		func() (err error) { rec.IMDbUserRating, err = extract.UserRating(doc); return },
		func() (err error) { rec.IMDbUserRatingCount, err = extract.UserRatingCount(doc); return },
		func() (err error) { rec.Metascore, err = extract.Metascore(doc); return },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return domain.MovieRecord{}, &RecordError{URL: detailURL, Stage: StageParse, Err: err}
		}
	}

	if plan, ok := releasePlans[rec.Country]; ok {
		if err := plan(ctx, a.Fetcher, detailURL, doc, &rec); err != nil {
			return domain.MovieRecord{}, err
		}
	}
	return rec, nil
}

// releasePlan 为某个国家组合填充发行日期，可能需要额外抓取。
type releasePlan func(ctx context.Context, f fetch.Fetcher, detailURL string, detail *goquery.Document, rec *domain.MovieRecord) error

// releasePlans 是国家组合到发行日期来源的映射；CountryUnknown 不在表中（两个日期都为空）。
var releasePlans = map[domain.Country]releasePlan{
	domain.CountryJapan:    japanFromReleaseInfo,
	domain.CountryUSA:      usaFromDetail,
	domain.CountryJapanUSA: usaFromDetail,
}

func usaFromDetail(_ context.Context, _ fetch.Fetcher, detailURL string, detail *goquery.Document, rec *domain.MovieRecord) error {
	d, err := extract.USAReleaseDate(detail)
	if err != nil {
		return &RecordError{URL: detailURL, Stage: StageParse, Err: err}
	}
	rec.USAReleaseDate = d
	return nil
}

func japanFromReleaseInfo(ctx context.Context, f fetch.Fetcher, detailURL string, _ *goquery.Document, rec *domain.MovieRecord) error {
	riURL, err := ReleaseInfoURL(detailURL)
	if err != nil {
		return &RecordError{URL: detailURL, Stage: StageFetch, Err: err}
	}
	doc, err := f.Fetch(ctx, riURL)
	if err != nil {
		return &RecordError{URL: detailURL, Stage: StageFetch, Err: err}
	}
	d, err := extract.JapanReleaseDate(doc)
	if err != nil {
		return &RecordError{URL: detailURL, Stage: StageParse, Err: err}
	}
	rec.JapanReleaseDate = d
	return nil
}

// ReleaseInfoURL 返回详情页对应的发行信息页：<detail>/releaseinfo（忽略查询串与片段）。
func ReleaseInfoURL(detailURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(detailURL))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("详情页 URL 不是绝对地址：%q", detailURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.ResolveReference(&url.URL{Path: "releaseinfo"}).String(), nil
}
