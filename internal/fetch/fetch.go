// Package fetch 把 URL 变成可遍历的 HTML 文档。
//
// 约束：
// - 不做缓存、不做结果级重试（传输层可选重试由 httpx 控制，默认关闭）
// - 非 2xx / 网络错误 / 超时统一包装为 *FetchError
// - 限速对所有并发 worker 全局生效
package fetch

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/imdbscrape/internal/infra/httpx"
	"github.com/John-Robertt/imdbscrape/internal/infra/snapshot"
)

var tracer = otel.Tracer("github.com/John-Robertt/imdbscrape/internal/fetch")

// Fetcher 是抓取边界：listing 与 assemble 只依赖该接口，测试用桩实现替换。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Options 控制 HTTPFetcher 的网络策略；零值可用（直连、20s 超时、不限速）。
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // 每秒请求数；<=0 表示不限速
	ProxyURL  string
	UserAgent string
	RetryMax  int

	Snapshots snapshot.Store
	Log       logrus.FieldLogger
}

// HTTPFetcher 是基于 resty 的 Fetcher 实现。
type HTTPFetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
	snaps   snapshot.Store
	log     logrus.FieldLogger
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	hc, err := httpx.NewClient(httpx.Options{
		ProxyURL:  opts.ProxyURL,
		UserAgent: opts.UserAgent,
		RetryMax:  opts.RetryMax,
	})
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}

	return &HTTPFetcher{
		client:  resty.NewWithClient(hc).SetTimeout(timeout).SetLogger(log),
		limiter: limiter,
		timeout: timeout,
		snaps:   opts.Snapshots,
		log:     log,
	}, nil
}

// Fetch 抓取 url 并解析为文档。
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "fetch", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	doc, err := f.fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		f.log.WithFields(logrus.Fields{"url": url}).WithError(err).Debug("抓取失败")
		return nil, err
	}
	return doc, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()
	res, err := f.client.R().SetContext(reqCtx).Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &FetchError{URL: url, Err: &HTTPStatusError{
			URL:        url,
			StatusCode: res.StatusCode(),
			Location:   res.Header().Get("Location"),
		}}
	}

	body := res.Body()
	f.log.WithFields(logrus.Fields{
		"url":     url,
		"status":  res.StatusCode(),
		"bytes":   len(body),
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Debug("抓取完成")

	if err := f.snaps.Save(url, body); err != nil {
		// 快照只用于排查，失败不影响本次抓取。
		f.log.WithFields(logrus.Fields{"url": url}).WithError(err).Warn("写入 HTML 快照失败")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return doc, nil
}
