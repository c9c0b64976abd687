package run

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/imdbscrape/internal/assemble"
	"github.com/John-Robertt/imdbscrape/internal/config"
	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/fetch"
	"github.com/John-Robertt/imdbscrape/internal/listing"
)

// ErrConsumed 表示同一个 Records 序列被第二次遍历。
var ErrConsumed = errors.New("记录序列只能遍历一次")

// RecordAssembler 是 Pipeline 对组装器的依赖；*assemble.Assembler 满足该接口。
type RecordAssembler interface {
	Record(ctx context.Context, detailURL string) (domain.MovieRecord, error)
}

// Pipeline 串起 分页 -> 收集详情页 URL -> 逐条组装。
//
// 约束：
// - 组装阶段按 Concurrency 并发，但结果严格按发现顺序产出
// - OnError=skip 时单条失败不影响其它；abort 时在第一条失败后停止并取消在途请求
type Pipeline struct {
	Fetcher   fetch.Fetcher
	Assembler RecordAssembler

	Concurrency int
	OnError     string
	Dedupe      bool

	Observer Observer
	Log      logrus.FieldLogger
}

// outcome 是一条详情页的处理结果（带发现序号）。
type outcome struct {
	Index  int
	URL    string
	Record domain.MovieRecord
	Err    error
	Dur    time.Duration
}

// Records 返回一个惰性、有限、只能遍历一次的记录序列。
//
// 每个元素要么是 (record, nil)，要么是 (zero, err)：
// - 单条失败：err 为 *assemble.RecordError
// - 分页/收集失败：err 为对应错误，且之后不再产出
// 提前 break 会取消所有在途抓取。
func (p *Pipeline) Records(ctx context.Context, firstURL, nextURL string) iter.Seq2[domain.MovieRecord, error] {
	var used atomic.Bool
	return func(yield func(domain.MovieRecord, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(domain.MovieRecord{}, ErrConsumed)
			return
		}
		_, err := p.run(ctx, firstURL, nextURL, func(o outcome) bool {
			return yield(o.Record, o.Err)
		})
		if err != nil {
			yield(domain.MovieRecord{}, err)
		}
	}
}

func (p *Pipeline) log() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

func (p *Pipeline) workers() int {
	w := p.Concurrency
	if w < 1 {
		w = 1
	}
	if w > config.MaxConcurrency {
		w = config.MaxConcurrency
	}
	return w
}

// runInfo 是一次运行在分页/收集阶段得到的规模信息，供报告补齐未处理条目。
type runInfo struct {
	Pages     int
	URLs      []string
	Collected bool
}

// run 返回分页/收集的结果，以及分页/收集阶段或外部取消的错误。
// emit 返回 false 表示调用方不再需要后续结果。
func (p *Pipeline) run(ctx context.Context, firstURL, nextURL string, emit func(outcome) bool) (runInfo, error) {
	log := p.log()
	obs := p.Observer

	started := time.Now()
	session, err := listing.Paginate(ctx, p.Fetcher, firstURL, nextURL)
	if err != nil {
		return runInfo{}, err
	}
	if obs != nil {
		obs.OnPhaseDone("paginate", map[string]any{
			"titles": session.Total,
			"pages":  len(session.Pages),
		}, time.Since(started))
	}
	log.WithFields(logrus.Fields{"titles": session.Total, "pages": len(session.Pages)}).Debug("paginate done")

	started = time.Now()
	urls, err := listing.Collect(ctx, p.Fetcher, session, listing.CollectOptions{
		Concurrency: p.workers(),
		Dedupe:      p.Dedupe,
	})
	info := runInfo{Pages: len(session.Pages), URLs: urls}
	if err != nil {
		return info, err
	}
	info.Collected = true
	if obs != nil {
		obs.OnPhaseDone("collect", map[string]any{"urls": len(urls)}, time.Since(started))
	}
	log.WithField("urls", len(urls)).Debug("collect done")

	workers := p.workers()
	if obs != nil {
		obs.OnPhaseDone("assemble", map[string]any{
			"workers":     workers,
			"total_items": len(urls),
		}, 0)
	}

	return info, p.assembleAll(ctx, urls, workers, emit)
}

// assembleAll 用固定大小的 worker pool 组装每条记录，并按 Index 顺序交给 emit。
// 调用方停止（emit=false）或 abort 时返回 nil；外部取消导致未全部产出时返回 ctx 的错误。
func (p *Pipeline) assembleAll(parent context.Context, urls []string, workers int, emit func(outcome) bool) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan int)
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				oneStarted := time.Now()
				rec, err := p.Assembler.Record(ctx, urls[idx])
				o := outcome{Index: idx, URL: urls[idx], Record: rec, Err: err, Dur: time.Since(oneStarted)}
				select {
				case results <- o:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range urls {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	abort := p.OnError == config.OnErrorAbort
	pending := make(map[int]outcome, workers)
	next := 0
	stopped := false
	for o := range results {
		if stopped {
			continue
		}
		pending[o.Index] = o
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if p.Observer != nil {
				p.Observer.OnItemDone(next, len(urls), itemResult(cur), cur.Dur)
			}
			if cur.Err != nil {
				p.log().WithError(cur.Err).WithField("url", cur.URL).Debug("record failed")
			}
			if !emit(cur) || (abort && cur.Err != nil) {
				stopped = true
				cancel()
				break
			}
		}
	}

	if !stopped && next < len(urls) {
		if err := parent.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	return nil
}

// itemResult 把一条 outcome 映射为报告条目。
func itemResult(o outcome) domain.ItemResult {
	it := domain.ItemResult{
		Index:  o.Index,
		URL:    o.URL,
		Status: domain.StatusProcessed,
	}
	if o.Err == nil {
		it.Title = o.Record.DisplayTitle()
		return it
	}

	it.Status = domain.StatusFailed
	var re *assemble.RecordError
	switch {
	case errors.As(o.Err, &re):
		it.ErrorCode = re.ErrorCode()
		if re.Stage == assemble.StageParse {
			it.ErrorMsg = humanizeParseError(re.Err)
		} else {
			it.ErrorMsg = humanizeFetchError(re.Err)
		}
	case errors.Is(o.Err, context.Canceled):
		it.ErrorCode = domain.ErrCodeCanceled
		it.ErrorMsg = o.Err.Error()
	default:
		it.ErrorCode = domain.ErrCodeFetchFailed
		it.ErrorMsg = o.Err.Error()
	}
	return it
}
