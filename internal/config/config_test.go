package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testFirst = "https://www.imdb.com/search/title/?countries=jp"
	testNext  = "https://www.imdb.com/search/title/?countries=jp&start=101"
)

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigMustExist(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "nope.json", FirstURL: testFirst, NextURL: testNext})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ConfigMissingURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"first_url": "`+testFirst+`"}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingURL {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingURL, err, Code(err))
	}
}

func TestLoadEffective_CLIURLs_ConfigOptional(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{FirstURL: testFirst, NextURL: testNext})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("期望 concurrency=%d，实际=%d", DefaultConcurrency, eff.Concurrency)
	}
	if eff.Timeout != DefaultTimeout {
		t.Fatalf("期望 timeout=%v，实际=%v", DefaultTimeout, eff.Timeout)
	}
	if eff.OnError != OnErrorSkip || eff.Dedupe {
		t.Fatalf("默认应为 on_error=skip、dedupe=false，实际 %q %v", eff.OnError, eff.Dedupe)
	}
	if eff.Output != filepath.Join(cwd, DefaultOutput) {
		t.Fatalf("期望 output=%q，实际=%q", filepath.Join(cwd, DefaultOutput), eff.Output)
	}
	if eff.CurrencyRates["JPY"] != 106.9 {
		t.Fatalf("期望内置 JPY 汇率 106.9，实际 %v", eff.CurrencyRates["JPY"])
	}
	if eff.ConfigFile != "" {
		t.Fatalf("未读取配置文件时 ConfigFile 应为空，实际 %q", eff.ConfigFile)
	}
}

func TestLoadEffective_JSON5AndMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
  // 注释与尾逗号都允许
  first_url: "`+testFirst+`",
  next_url: "`+testNext+`",
  concurrency: 8,
  timeout: "5s",
  on_error: "abort",
  dedupe: true,
  output: "out/movies.jsonl",
  dump_html: "html",
  currency_rates: { jpy: 110, EUR: 0.9 },
  proxy: { url: "http://127.0.0.1:7890" },
}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 8 || eff.Timeout != 5*time.Second || eff.OnError != OnErrorAbort || !eff.Dedupe {
		t.Fatalf("配置文件字段未生效：%+v", eff)
	}
	if eff.Output != filepath.Join(cwd, "out", "movies.jsonl") || eff.DumpHTML != filepath.Join(cwd, "html") {
		t.Fatalf("相对路径应以配置文件目录为基准：output=%q dump_html=%q", eff.Output, eff.DumpHTML)
	}
	if eff.CurrencyRates["JPY"] != 110 || eff.CurrencyRates["EUR"] != 0.9 || eff.CurrencyRates["USD"] != 1 {
		t.Fatalf("汇率合并不正确：%v", eff.CurrencyRates)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("期望 proxy.url 生效，实际 %q", eff.ProxyURL)
	}

	// CLI 显式指定，则覆盖配置文件（包括 --dedupe=false）。
	eff2, err := LoadEffective(cwd, CLIArgs{
		Concurrency:    100,
		ConcurrencySet: true,
		OnError:        OnErrorSkip,
		OnErrorSet:     true,
		Dedupe:         false,
		DedupeSet:      true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Concurrency != MaxConcurrency {
		t.Fatalf("期望并发截断为 %d，实际=%d", MaxConcurrency, eff2.Concurrency)
	}
	if eff2.OnError != OnErrorSkip || eff2.Dedupe {
		t.Fatalf("CLI 覆盖未生效：on_error=%q dedupe=%v", eff2.OnError, eff2.Dedupe)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"broken":       `{`,
		"on_error":     `{first_url:"` + testFirst + `", next_url:"` + testNext + `", on_error:"retry"}`,
		"timeout":      `{first_url:"` + testFirst + `", next_url:"` + testNext + `", timeout:"soon"}`,
		"scheme":       `{first_url:"ftp://example.com/", next_url:"` + testNext + `"}`,
		"proxy":        `{first_url:"` + testFirst + `", next_url:"` + testNext + `", proxy:{url:"127.0.0.1"}}`,
		"rate":         `{first_url:"` + testFirst + `", next_url:"` + testNext + `", currency_rates:{JPY:0}}`,
		"rate_limit":   `{first_url:"` + testFirst + `", next_url:"` + testNext + `", rate_limit:-1}`,
		"retry_max":    `{first_url:"` + testFirst + `", next_url:"` + testNext + `", retry_max:-1}`,
		"currency_len": `{first_url:"` + testFirst + `", next_url:"` + testNext + `", currency_rates:{YEN:1, DOLLAR:2}}`,
	}
	for name, body := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, FileName), []byte(body))

		_, err := LoadEffective(cwd, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", name, ErrCodeInvalid, err, Code(err))
		}
	}
}

func TestLoadEffective_ConcurrencyClampLow(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{FirstURL: testFirst, NextURL: testNext, Concurrency: -3, ConcurrencySet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 1 {
		t.Fatalf("期望并发截断为 1，实际=%d", eff.Concurrency)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
