// Package extract 从详情页 / 发行信息页中定位各字段的片段，并交给 normalize 转换。
//
// 约束：
// - 每个提取函数只依赖传入的文档，彼此独立
// - 标记不存在时返回 nil（最常见的路径，不是错误）
// - 只有“标记存在但文本不符合文法”才返回 error（*FieldError 包裹 *normalize.ParseError）
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/normalize"
)

// FieldError 标记是哪个字段的文本不符合文法。
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("字段 %s：%v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(field string, err error) error {
	if err == nil {
		return nil
	}
	return &FieldError{Field: field, Err: err}
}

// Title 读取第一个 h1，去掉 NBSP 之后的年份等附注。
func Title(doc *goquery.Document) *string {
	s, ok := first(doc, selTitle)
	if !ok {
		return nil
	}
	t := normalize.CutNBSP(trimmedText(s))
	if t == "" {
		return nil
	}
	return &t
}

// Country 检查所有 Country: 标题所在块；第一个含 Japan/USA 的块决定结果。
func Country(doc *goquery.Document) domain.Country {
	out := domain.CountryUnknown
	labeled(doc, selLabelHeading, labelCountry).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := trimmedText(h.Parent())
		japan := strings.Contains(text, "Japan")
		usa := strings.Contains(text, "USA")
		switch {
		case japan && usa:
			out = domain.CountryJapanUSA
		case japan:
			out = domain.CountryJapan
		case usa:
			out = domain.CountryUSA
		default:
			return true
		}
		return false
	})
	return out
}

// RuntimeMinutes 读取第一个 time 元素。
func RuntimeMinutes(doc *goquery.Document) (*int, error) {
	s, ok := first(doc, selRuntime)
	if !ok {
		return nil, nil
	}
	m, err := normalize.Runtime(trimmedText(s))
	if err != nil {
		return nil, fieldErr("runtime_minutes", err)
	}
	return &m, nil
}

// Budget 读取 Budget: 所在块；带外币代码时按 rates 换算，未知货币视为缺失。
func Budget(doc *goquery.Document, rates normalize.Rates) (*int64, error) {
	block, ok := labelBlock(doc, labelBudget)
	if !ok {
		return nil, nil
	}
	raw := strings.Replace(trimmedText(block), labelBudget, "", 1)
	raw = firstLine(strings.TrimSpace(raw))
	return currency("budget", raw, rates)
}

// GlobalGross 读取 Cumulative Worldwide Gross: 标题所在块。
func GlobalGross(doc *goquery.Document, rates normalize.Rates) (*int64, error) {
	h := labeled(doc, selLabelHeading, labelGross).First()
	if h.Length() == 0 {
		return nil, nil
	}
	raw := strings.Replace(trimmedText(h.Parent()), labelGross, "", 1)
	raw = firstLine(strings.TrimSpace(raw))
	return currency("global_gross", raw, rates)
}

func currency(field, raw string, rates normalize.Rates) (*int64, error) {
	n, err := normalize.Currency(raw, rates)
	if errors.Is(err, normalize.ErrUnknownCurrency) {
		return nil, nil
	}
	if err != nil {
		return nil, fieldErr(field, err)
	}
	return &n, nil
}

// MPAARating 取 subtext 的第一个 token，仅接受固定集合内的评级。
func MPAARating(doc *goquery.Document) *string {
	s, ok := first(doc, selSubtext)
	if !ok {
		return nil
	}
	toks := strings.Fields(s.Text())
	if len(toks) == 0 {
		return nil
	}
	if _, ok := mpaaRatings[toks[0]]; !ok {
		return nil
	}
	r := toks[0]
	return &r
}

// USAReleaseDate 读取详情页上的 "See more release dates" 链接文本。
func USAReleaseDate(doc *goquery.Document) (*time.Time, error) {
	s, ok := first(doc, selUSARelease)
	if !ok {
		return nil, nil
	}
	raw := strings.Replace(trimmedText(s), suffixUSA, "", 1)
	return date("usa_release_date", raw)
}

// JapanReleaseDate 读取发行信息页中日本日历链接之后的第一个元素（日期单元格）。
func JapanReleaseDate(releaseInfo *goquery.Document) (*time.Time, error) {
	s, ok := first(releaseInfo, selJapanCalendar)
	if !ok {
		return nil, nil
	}
	next := NextInDocument(s)
	if next.Length() == 0 {
		return nil, nil
	}
	return date("japan_release_date", next.Text())
}

func date(field, raw string) (*time.Time, error) {
	t, err := normalize.Date(raw)
	if err != nil {
		return nil, fieldErr(field, err)
	}
	return &t, nil
}

// Genres 读取 Genres: 所在块并按 "|" 切分。
func Genres(doc *goquery.Document) []string {
	block, ok := labelBlock(doc, labelGenres)
	if !ok {
		return nil
	}
	return normalize.List(trimmedText(block), labelGenres)
}

func UserRating(doc *goquery.Document) (*float64, error) {
	s, ok := first(doc, selRatingValue)
	if !ok {
		return nil, nil
	}
	f, err := normalize.Float(s.Text())
	if err != nil {
		return nil, fieldErr("imdb_user_rating", err)
	}
	return &f, nil
}

func UserRatingCount(doc *goquery.Document) (*int, error) {
	s, ok := first(doc, selRatingCount)
	if !ok {
		return nil, nil
	}
	n, err := normalize.IntCommas(s.Text())
	if err != nil {
		return nil, fieldErr("imdb_user_rating_count", err)
	}
	return &n, nil
}

func Metascore(doc *goquery.Document) (*int, error) {
	s, ok := first(doc, selMetascore)
	if !ok {
		return nil, nil
	}
	n, err := normalize.IntCommas(s.Text())
	if err != nil {
		return nil, fieldErr("metascore", err)
	}
	return &n, nil
}

// OscarWins 只在 awards 摘要含 "Won" 时取第一个整数 token。
func OscarWins(doc *goquery.Document) *int {
	s, ok := first(doc, selAwards)
	if !ok {
		return nil
	}
	text := s.Text()
	if !strings.Contains(text, "Won") {
		return nil
	}
	return firstInt(text)
}

// NonOscarWins 有两条路径：
// 1) 摘要提到 Oscar 且存在下一个兄弟元素：兄弟文本含 "win" 时取其第一个整数
// 2) 否则（包括路径 1 未取到值）：摘要自身含 "win" 时取其第一个整数
//
// 路径 2 在“提到 Oscar 但没有兄弟元素”时会扫描同一段摘要，可能取到 Oscar 数量；这是站点数据的既有行为，保持不变。
func NonOscarWins(doc *goquery.Document) *int {
	s, ok := first(doc, selAwards)
	if !ok {
		return nil
	}
	text := s.Text()
	if strings.Contains(text, "Oscar") {
		if sib := s.Next(); sib.Length() > 0 {
			st := trimmedText(sib)
			if strings.Contains(st, "win") {
				if n := firstInt(st); n != nil {
					return n
				}
			}
		}
	}
	if strings.Contains(text, "win") {
		return firstInt(text)
	}
	return nil
}

func firstInt(s string) *int {
	n, ok := normalize.FirstInt(s)
	if !ok {
		return nil
	}
	return &n
}
