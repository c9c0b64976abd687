package assemble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/fetch"
)

// stubFetcher 按 URL 返回固定 HTML，并记录每个 URL 的抓取次数。
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newStub(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages, calls: map[string]int{}}
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	s.mu.Lock()
	s.calls[url]++
	html, ok := s.pages[url]
	s.mu.Unlock()
	if !ok {
		return nil, &fetch.FetchError{URL: url, Err: &fetch.HTTPStatusError{URL: url, StatusCode: 404}}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (s *stubFetcher) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func detailHTML(country, runtime string) string {
	return fmt.Sprintf(`<html><body>
<h1>Movie&nbsp;(2001)</h1>
<div class="subtext">PG-13 | <time datetime="PT1M">%s</time> |
<a href="/title/tt1/releaseinfo" title="See more release dates">3 March 2006 (USA)</a></div>
<div class="txt-block"><h4 class="inline">Country:</h4> %s</div>
<div class="txt-block"><h4 class="inline">Budget:</h4>$1,234,567
<span class="attribute">(estimated)</span></div>
</body></html>`, runtime, country)
}

const releaseInfo = `<html><body><table>
<tr><td><a href="/calendar/?region=jp">Japan</a></td>
<td class="release-date-item__date">20 July 2001</td></tr>
</table></body></html>`

const detailURL = "https://www.imdb.com/title/tt1/"

func TestRecord_JapanFetchesReleaseInfoOnce(t *testing.T) {
	f := newStub(map[string]string{
		detailURL:                 detailHTML(`<a>Japan</a>`, "2h 15min"),
		detailURL + "releaseinfo": releaseInfo,
	})
	a := &Assembler{Fetcher: f}

	rec, err := a.Record(context.Background(), detailURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.Country != domain.CountryJapan {
		t.Fatalf("期望 Japan，实际 %v", rec.Country)
	}
	if f.calls[detailURL+"releaseinfo"] != 1 || f.total() != 2 {
		t.Fatalf("Japan 应恰好额外抓取一次发行信息页，calls=%v", f.calls)
	}
	want := time.Date(2001, time.July, 20, 0, 0, 0, 0, time.UTC)
	if rec.JapanReleaseDate == nil || !rec.JapanReleaseDate.Equal(want) {
		t.Fatalf("期望 japan_release_date=%v，实际 %v", want, rec.JapanReleaseDate)
	}
	if rec.USAReleaseDate != nil {
		t.Fatalf("Japan 时 usa_release_date 必须为空，实际 %v", rec.USAReleaseDate)
	}
	if rec.RuntimeMinutes == nil || *rec.RuntimeMinutes != 135 {
		t.Fatalf("期望 runtime=135，实际 %v", rec.RuntimeMinutes)
	}
	if rec.Budget == nil || *rec.Budget != 1234567 {
		t.Fatalf("期望 budget=1234567，实际 %v", rec.Budget)
	}
	if rec.URL != detailURL {
		t.Fatalf("期望记录带上详情页 URL，实际 %q", rec.URL)
	}
}

func TestRecord_USAUsesDetailOnly(t *testing.T) {
	for _, country := range []string{`<a>USA</a>`, `<a>Japan</a> | <a>USA</a>`} {
		f := newStub(map[string]string{detailURL: detailHTML(country, "1h 30min")})
		a := &Assembler{Fetcher: f}

		rec, err := a.Record(context.Background(), detailURL)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if f.total() != 1 {
			t.Fatalf("%s：不应有额外抓取，calls=%v", country, f.calls)
		}
		want := time.Date(2006, time.March, 3, 0, 0, 0, 0, time.UTC)
		if rec.USAReleaseDate == nil || !rec.USAReleaseDate.Equal(want) {
			t.Fatalf("%s：期望 usa_release_date=%v，实际 %v", country, want, rec.USAReleaseDate)
		}
		if rec.JapanReleaseDate != nil {
			t.Fatalf("%s：japan_release_date 必须为空", country)
		}
	}
}

func TestRecord_UnknownCountryNoDates(t *testing.T) {
	f := newStub(map[string]string{detailURL: detailHTML(`<a>France</a>`, "1h 30min")})
	rec, err := (&Assembler{Fetcher: f}).Record(context.Background(), detailURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.Country != domain.CountryUnknown || rec.USAReleaseDate != nil || rec.JapanReleaseDate != nil {
		t.Fatalf("未知国家时两个日期都应为空：%+v", rec)
	}
	if f.total() != 1 {
		t.Fatalf("不应有额外抓取，calls=%v", f.calls)
	}
}

func TestRecord_FetchFailure(t *testing.T) {
	f := newStub(map[string]string{})
	_, err := (&Assembler{Fetcher: f}).Record(context.Background(), detailURL)

	var re *RecordError
	if !errors.As(err, &re) || re.Stage != StageFetch || re.ErrorCode() != domain.ErrCodeFetchFailed {
		t.Fatalf("期望 fetch 阶段的 RecordError，实际 %v", err)
	}
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("期望保留 FetchError，实际 %v", err)
	}
}

func TestRecord_ReleaseInfoFetchFailure(t *testing.T) {
	f := newStub(map[string]string{detailURL: detailHTML(`<a>Japan</a>`, "1h 30min")})
	_, err := (&Assembler{Fetcher: f}).Record(context.Background(), detailURL)

	var re *RecordError
	if !errors.As(err, &re) || re.Stage != StageFetch || re.URL != detailURL {
		t.Fatalf("发行信息页失败应归为 fetch 阶段，实际 %v", err)
	}
}

func TestRecord_MalformedRuntimeIsParseFailure(t *testing.T) {
	f := newStub(map[string]string{detailURL: detailHTML(`<a>USA</a>`, "90min")})
	_, err := (&Assembler{Fetcher: f}).Record(context.Background(), detailURL)

	var re *RecordError
	if !errors.As(err, &re) || re.Stage != StageParse || re.ErrorCode() != domain.ErrCodeParseFailed {
		t.Fatalf("期望 parse 阶段的 RecordError，实际 %v", err)
	}
}

func TestReleaseInfoURL(t *testing.T) {
	cases := map[string]string{
		"https://www.imdb.com/title/tt1/":            "https://www.imdb.com/title/tt1/releaseinfo",
		"https://www.imdb.com/title/tt1":             "https://www.imdb.com/title/tt1/releaseinfo",
		"https://www.imdb.com/title/tt1/?ref_=adv_li": "https://www.imdb.com/title/tt1/releaseinfo",
	}
	for in, want := range cases {
		got, err := ReleaseInfoURL(in)
		if err != nil {
			t.Fatalf("%q：不期望错误：%v", in, err)
		}
		if got != want {
			t.Fatalf("%q：期望 %q，实际 %q", in, want, got)
		}
	}
	if _, err := ReleaseInfoURL("/title/tt1/"); err == nil {
		t.Fatalf("相对地址应报错")
	}
}
