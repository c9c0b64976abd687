package run

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/imdbscrape/internal/fetch"
	"github.com/John-Robertt/imdbscrape/internal/normalize"
)

func humanizeFetchError(err error) string {
	if err == nil {
		return "抓取失败"
	}

	// HTTP 非 2xx：尽量给出可操作提示（反爬/限流是最常见问题）。
	var hs *fetch.HTTPStatusError
	if errors.As(err, &hs) {
		loc := strings.TrimSpace(hs.Location)
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("返回 HTTP %d（可能触发反爬/限流）。建议降低并发、设置 rate_limit 或配置 proxy.url。", hs.StatusCode)
		case 404:
			return "返回 HTTP 404（该条目可能不存在/已下架）。"
		default:
			if loc != "" {
				return fmt.Sprintf("返回 HTTP %d（重定向）：%s", hs.StatusCode, loc)
			}
			return fmt.Sprintf("返回 HTTP %d。", hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return "抓取超时。建议检查网络/代理，或调大 timeout 后重试。"
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return "连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。"
	}
	return fmt.Sprintf("抓取失败：%v", err)
}

func humanizeParseError(err error) string {
	if err == nil {
		return "解析失败"
	}
	// 标记存在但文本不符合文法：通常意味着站点模板变化。
	return fmt.Sprintf("解析失败（站点结构可能变化）：%v", err)
}

func humanizeListingError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "运行被取消"
	case normalize.IsParseError(err):
		return "列表页" + humanizeParseError(err)
	default:
		return "列表页" + humanizeFetchError(err)
	}
}
