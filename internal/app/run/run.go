package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/imdbscrape/internal/assemble"
	"github.com/John-Robertt/imdbscrape/internal/config"
	"github.com/John-Robertt/imdbscrape/internal/dataset"
	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/fetch"
	"github.com/John-Robertt/imdbscrape/internal/infra/snapshot"
	"github.com/John-Robertt/imdbscrape/internal/listing"
	"github.com/John-Robertt/imdbscrape/internal/normalize"
)

// Result 是一次完整运行的产物：按发现顺序的成功记录，以及对外稳定的 RunReport。
type Result struct {
	Records []domain.MovieRecord
	Report  domain.RunReport
}

// NewFetcher 按生效配置构造 HTTP 抓取器（超时、限速、代理、UA、HTML 快照）。
func NewFetcher(eff config.EffectiveConfig, log logrus.FieldLogger) (*fetch.HTTPFetcher, error) {
	return fetch.NewHTTPFetcher(fetch.Options{
		Timeout:   eff.Timeout,
		RateLimit: eff.RateLimit,
		ProxyURL:  eff.ProxyURL,
		UserAgent: eff.UserAgent,
		RetryMax:  eff.RetryMax,
		Snapshots: snapshot.New(eff.DumpHTML),
		Log:       log,
	})
}

// Execute 执行一次完整运行并写出数据集。f 为 nil 时按配置构造 HTTP 抓取器。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, f fetch.Fetcher) Result {
	return ExecuteWithObserver(ctx, eff, f, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, f fetch.Fetcher, obs Observer) Result {
	started := time.Now().UTC()
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		FirstURL:  eff.FirstURL,
		Output:    eff.Output,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	finish := func(records []domain.MovieRecord) Result {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return Result{Records: records, Report: rr}
	}

	log := logrus.StandardLogger().WithField("run", started.Format(time.RFC3339))
	if f == nil {
		hf, err := NewFetcher(eff, log)
		if err != nil {
			rr.Items = append(rr.Items, domain.SyntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
			return finish(nil)
		}
		f = hf
	}

	p := &Pipeline{
		Fetcher:     f,
		Assembler:   &assemble.Assembler{Fetcher: f, Rates: eff.CurrencyRates},
		Concurrency: eff.Concurrency,
		OnError:     eff.OnError,
		Dedupe:      eff.Dedupe,
		Observer:    obs,
		Log:         log,
	}

	var records []domain.MovieRecord
	emitted := 0
	info, err := p.run(ctx, eff.FirstURL, eff.NextURL, func(o outcome) bool {
		emitted++
		rr.Items = append(rr.Items, itemResult(o))
		if o.Err == nil {
			records = append(records, o.Record)
		}
		return true
	})
	rr.ListingPages = info.Pages

	if err != nil {
		rr.Items = append(rr.Items, domain.SyntheticFailed(listingErrorCode(err), humanizeListingError(err)))
	}
	// abort 或取消：未处理的详情页记为 skipped，保证报告覆盖所有已发现的 URL。
	for i := emitted; i < len(info.URLs); i++ {
		rr.Items = append(rr.Items, domain.ItemResult{
			Index:    i,
			URL:      info.URLs[i],
			Status:   domain.StatusSkipped,
			ErrorMsg: "未处理（on_error=abort 或运行被取消）",
		})
	}
	// 分页/收集失败时没有可写的数据；否则即便部分失败也写出已成功的记录。
	if eff.Output != "" && info.Collected {
		writeStarted := time.Now()
		if werr := dataset.WriteFile(context.WithoutCancel(ctx), eff.Output, records); werr != nil {
			rr.Items = append(rr.Items, domain.SyntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写出数据集失败：%v", werr)))
		} else if obs != nil {
			obs.OnPhaseDone("write", map[string]any{
				"rows": len(records),
				"path": eff.Output,
			}, time.Since(writeStarted))
		}
	}
	return finish(records)
}

func listingErrorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.ErrCodeCanceled
	case normalize.IsParseError(err):
		return domain.ErrCodeParseFailed
	default:
		return domain.ErrCodeFetchFailed
	}
}

// CollectURLs 只执行分页与收集，返回按发现顺序的详情页 URL 与列表页数量。
func CollectURLs(ctx context.Context, eff config.EffectiveConfig, f fetch.Fetcher) ([]string, int, error) {
	if f == nil {
		hf, err := NewFetcher(eff, logrus.StandardLogger())
		if err != nil {
			return nil, 0, err
		}
		f = hf
	}
	session, err := listing.Paginate(ctx, f, eff.FirstURL, eff.NextURL)
	if err != nil {
		return nil, 0, err
	}
	p := &Pipeline{Concurrency: eff.Concurrency}
	urls, err := listing.Collect(ctx, f, session, listing.CollectOptions{
		Concurrency: p.workers(),
		Dedupe:      eff.Dedupe,
	})
	return urls, len(session.Pages), err
}

// Humanize 把分页/收集阶段的错误转换为面向用户的一句话。
func Humanize(err error) string { return humanizeListingError(err) }
