package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/titanous/json5"

	"github.com/John-Robertt/imdbscrape/internal/domain"
	"github.com/John-Robertt/imdbscrape/internal/normalize"
)

const (
	// ErrCodeNotFound 表示既没有在 CLI 给出 URL，也找不到配置文件。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingURL 表示合并后仍缺少 first_url 或 next_url。
	ErrCodeMissingURL = domain.ErrCodeConfigMissingURL
)

const (
	// FileName 是 cwd 下默认发现的配置文件名（JSON5，允许注释与尾逗号）。
	FileName = "imdbscrape.json"

	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// MaxConcurrency 是并发上限；超出截断。
	MaxConcurrency = 32
	// DefaultTimeout 是单次抓取的默认超时。
	DefaultTimeout = 20 * time.Second
	// DefaultOutput 是数据集的默认输出路径（扩展名决定格式）。
	DefaultOutput = "movies.csv"

	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

// CLIArgs 是 CLI 暴露的参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dedupe=false 必须能覆盖 config.dedupe=true。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时尝试 <cwd>/imdbscrape.json。
	ConfigPath string

	FirstURL string
	NextURL  string

	Output    string
	OutputSet bool

	Concurrency    int
	ConcurrencySet bool

	Timeout    time.Duration
	TimeoutSet bool

	RateLimit    float64
	RateLimitSet bool

	OnError    string
	OnErrorSet bool

	Dedupe    bool
	DedupeSet bool

	DumpHTML    string
	DumpHTMLSet bool
}

// FileConfig 对应 imdbscrape.json 的解析结构。
type FileConfig struct {
	FirstURL      string             `json:"first_url"`
	NextURL       string             `json:"next_url"`
	Output        string             `json:"output"`
	Concurrency   int                `json:"concurrency"`
	Timeout       string             `json:"timeout"`
	RateLimit     float64            `json:"rate_limit"`
	Proxy         *ProxyConfig       `json:"proxy"`
	OnError       string             `json:"on_error"`
	Dedupe        *bool              `json:"dedupe"`
	DumpHTML      string             `json:"dump_html"`
	CurrencyRates map[string]float64 `json:"currency_rates"`
	RetryMax      int                `json:"retry_max"`
	UserAgent     string             `json:"user_agent"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	FirstURL string
	NextURL  string

	// Output 是数据集的绝对路径；扩展名决定写出格式。
	Output string

	Concurrency int
	Timeout     time.Duration
	// RateLimit 是全局请求速率（次/秒）；0 表示不限速。
	RateLimit float64
	ProxyURL  string
	RetryMax  int
	UserAgent string

	OnError string
	Dedupe  bool

	// DumpHTML 非空时把抓到的原始 HTML 落到该目录（绝对路径）。
	DumpHTML string

	// CurrencyRates 为“每 1 美元对应的外币数”；已合并内置默认值。
	CurrencyRates normalize.Rates

	// ConfigFile 是实际读取的配置文件；未读取时为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingURL:
		if e.Path == "" {
			return fmt.Sprintf("%s：缺少 first_url 或 next_url", e.Code)
		}
		return fmt.Sprintf("%s：配置文件 %q 缺少 first_url 或 next_url", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 给了 --config：必须存在
// 2) 否则读取 <cwd>/imdbscrape.json：CLI 已给出两个 URL 时可选，否则必选
//
// 覆盖优先级（固定）：CLI > config > 默认。proxy/currency_rates/retry_max/user_agent 仅由 config 控制。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := strings.TrimSpace(cli.FirstURL) == "" || strings.TrimSpace(cli.NextURL) == ""
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	// 相对路径（output、dump_html）以配置文件所在目录为基准；没有配置文件时以 cwd 为基准。
	base := cwdAbs
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}
	return merge(cwdAbs, base, cli, fc, cfgPath)
}

func merge(cwdAbs, base string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error { return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err} }

	firstURL := pick(cli.FirstURL, fc.FirstURL)
	nextURL := pick(cli.NextURL, fc.NextURL)
	if firstURL == "" || nextURL == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingURL, Path: cfgPath}
	}
	for _, u := range []string{firstURL, nextURL} {
		if err := validateHTTPURL(u); err != nil {
			return EffectiveConfig{}, invalid(err)
		}
	}

	// output：CLI 路径以 cwd 为基准，配置文件路径以配置文件目录为基准。
	output := absCleanFrom(cwdAbs, DefaultOutput)
	if cli.OutputSet && strings.TrimSpace(cli.Output) != "" {
		output = absCleanFrom(cwdAbs, cli.Output)
	} else if strings.TrimSpace(fc.Output) != "" {
		output = absCleanFrom(base, fc.Output)
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	timeout := DefaultTimeout
	if cli.TimeoutSet {
		timeout = cli.Timeout
	} else if s := strings.TrimSpace(fc.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("timeout 无效：%w", err))
		}
		timeout = d
	}
	if timeout <= 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("timeout 必须大于 0，实际 %v", timeout))
	}

	rateLimit := fc.RateLimit
	if cli.RateLimitSet {
		rateLimit = cli.RateLimit
	}
	if rateLimit < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("rate_limit 不能为负数，实际 %v", rateLimit))
	}

	onError := OnErrorSkip
	if cli.OnErrorSet {
		onError = strings.TrimSpace(cli.OnError)
	} else if strings.TrimSpace(fc.OnError) != "" {
		onError = strings.TrimSpace(fc.OnError)
	}
	if onError != OnErrorSkip && onError != OnErrorAbort {
		return EffectiveConfig{}, invalid(fmt.Errorf("on_error 只能是 skip 或 abort，实际是 %q", onError))
	}

	dedupe := false
	if cli.DedupeSet {
		dedupe = cli.Dedupe
	} else if fc.Dedupe != nil {
		dedupe = *fc.Dedupe
	}

	dumpHTML := ""
	if cli.DumpHTMLSet {
		if strings.TrimSpace(cli.DumpHTML) != "" {
			dumpHTML = absCleanFrom(cwdAbs, cli.DumpHTML)
		}
	} else if strings.TrimSpace(fc.DumpHTML) != "" {
		dumpHTML = absCleanFrom(base, fc.DumpHTML)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 无效：%q", proxyURL))
		}
	}

	if fc.RetryMax < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("retry_max 不能为负数，实际 %d", fc.RetryMax))
	}

	rates := normalize.DefaultRates()
	for code, r := range fc.CurrencyRates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 3 || r <= 0 {
			return EffectiveConfig{}, invalid(fmt.Errorf("currency_rates 无效：%q=%v", code, r))
		}
		rates[code] = r
	}

	return EffectiveConfig{
		FirstURL:      firstURL,
		NextURL:       nextURL,
		Output:        output,
		Concurrency:   concurrency,
		Timeout:       timeout,
		RateLimit:     rateLimit,
		ProxyURL:      proxyURL,
		RetryMax:      fc.RetryMax,
		UserAgent:     strings.TrimSpace(fc.UserAgent),
		OnError:       onError,
		Dedupe:        dedupe,
		DumpHTML:      dumpHTML,
		CurrencyRates: rates,
		ConfigFile:    cfgPath,
	}, nil
}

func pick(cli, file string) string {
	if s := strings.TrimSpace(cli); s != "" {
		return s
	}
	return strings.TrimSpace(file)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("URL 无效：%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL 必须是 http/https：%q", raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON5 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json5.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
