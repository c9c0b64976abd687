// Package listing 负责搜索结果列表：由首页推算全部分页 URL（Paginate），再从各页收集详情页链接（Collect）。
//
// 约束：
// - 站点每页 100 条；调用方显式给出第 1、2 页，其余页由第 2 页 URL 中的偏移标记 "101" 替换得到
// - 结果容器缺失视为模板漂移，返回 *normalize.ParseError（整次运行失败）
package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/imdbscrape/internal/extract"
	"github.com/John-Robertt/imdbscrape/internal/fetch"
	"github.com/John-Robertt/imdbscrape/internal/normalize"
)

const (
	pageSize     = 100
	offsetMarker = "101"

	selSummary   = "div.desc"
	selResults   = "div.lister-list"
	selItemTitle = "span.lister-item-header"

	countSuffix = "titles."
)

const urlFlags = purell.FlagsSafe |
	purell.FlagsUsuallySafeNonGreedy |
	purell.FlagRemoveDirectoryIndex |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

// Session 是一次运行的搜索会话：全部列表页 URL，以及（可复用的）首页文档。只在单次运行内存活。
type Session struct {
	FirstURL string
	Pages    []string
	Total    int

	first *goquery.Document
}

// Paginate 抓取首页，解析结果总数 N，返回 [first, next, extra...]。
// extra 的个数为 max(0, N/100-1)，第 i 页把 nextURL 中的 "101" 替换为 201+100*i。
func Paginate(ctx context.Context, f fetch.Fetcher, firstURL, nextURL string) (*Session, error) {
	if strings.TrimSpace(firstURL) == "" || strings.TrimSpace(nextURL) == "" {
		return nil, errors.New("first_url 与 next_url 都不能为空")
	}
	doc, err := f.Fetch(ctx, firstURL)
	if err != nil {
		return nil, err
	}
	n, err := TotalTitles(doc)
	if err != nil {
		return nil, err
	}
	return &Session{
		FirstURL: firstURL,
		Pages:    PageURLs(firstURL, nextURL, n),
		Total:    n,
		first:    doc,
	}, nil
}

// PageURLs 是 Paginate 的纯计算部分。
func PageURLs(firstURL, nextURL string, total int) []string {
	extra := total/pageSize - 1
	if extra < 0 {
		extra = 0
	}
	pages := make([]string, 0, 2+extra)
	pages = append(pages, firstURL, nextURL)
	for i := 0; i < extra; i++ {
		pages = append(pages, strings.ReplaceAll(nextURL, offsetMarker, strconv.Itoa(201+pageSize*i)))
	}
	return pages
}

// TotalTitles 读取 "1-100 of 1,234 titles." 这类摘要中 "titles." 前面的数字。
func TotalTitles(doc *goquery.Document) (int, error) {
	desc := doc.Find(selSummary).First()
	if desc.Length() == 0 {
		return 0, &normalize.ParseError{Kind: normalize.KindLayout, Err: errors.New("缺少结果数摘要 div.desc")}
	}
	text := extract.NextInDocument(desc).Text()
	toks := strings.Fields(text)
	for i, tok := range toks {
		if tok == countSuffix && i > 0 {
			return normalize.IntCommas(toks[i-1])
		}
	}
	return 0, &normalize.ParseError{Kind: normalize.KindInteger, Input: text, Err: fmt.Errorf("未找到 %q", countSuffix)}
}

// CollectOptions 控制 Collect 的并发与去重。
type CollectOptions struct {
	// Concurrency 为同时抓取的列表页数；<=0 视为 1。
	Concurrency int
	// Dedupe 为 true 时按首次出现保留，去掉重复的详情页 URL。默认保留重复。
	Dedupe bool
}

// Collect 抓取会话中的每个列表页，按“页序 + 页内出现顺序”返回详情页 URL。
// 首页文档直接复用 Paginate 的结果。任一页失败则整体失败。
func Collect(ctx context.Context, f fetch.Fetcher, s *Session, opts CollectOptions) ([]string, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	perPage := make([][]string, len(s.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, page := range s.Pages {
		g.Go(func() error {
			doc := s.first
			if i != 0 || doc == nil {
				var err error
				if doc, err = f.Fetch(gctx, page); err != nil {
					return err
				}
			}
			links, err := TitleLinks(doc, page)
			if err != nil {
				return fmt.Errorf("列表页 %s：%w", page, err)
			}
			perPage[i] = links
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	seen := map[string]struct{}{}
	for _, links := range perPage {
		for _, u := range links {
			if opts.Dedupe {
				if _, ok := seen[u]; ok {
					continue
				}
				seen[u] = struct{}{}
			}
			out = append(out, u)
		}
	}
	return out, nil
}

// TitleLinks 返回结果容器内每个条目标题的第一个链接，解析为绝对地址并规范化。
func TitleLinks(doc *goquery.Document, pageURL string) ([]string, error) {
	list := doc.Find(selResults).First()
	if list.Length() == 0 {
		return nil, &normalize.ParseError{Kind: normalize.KindLayout, Input: pageURL, Err: errors.New("缺少结果容器 div.lister-list")}
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var out []string
	list.Find(selItemTitle).Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		out = append(out, canonical(base.ResolveReference(ref)))
	})
	return out, nil
}

// canonical 去掉查询串（如 ?ref_=adv_li_tt）后交给 purell 规范化。
func canonical(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return purell.NormalizeURL(&c, urlFlags)
}
