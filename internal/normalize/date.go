package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// 站点常见的日期写法；未命中时再交给 dateparse 兜底。
var dateLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"January 2006",
	"2006",
}

// Date 把自由格式的日期文本解析为 UTC 零点的日历日期。
func Date(s string) (time.Time, error) {
	clean := strings.Join(strings.Fields(strings.ReplaceAll(s, nbsp, " ")), " ")
	if clean == "" {
		return time.Time{}, &ParseError{Kind: KindDate, Input: s, Err: errors.New("空字符串")}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return dateOnly(t), nil
		}
	}

	t, err := dateparse.ParseIn(clean, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Kind: KindDate, Input: s, Err: err}
	}
	return dateOnly(t), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
