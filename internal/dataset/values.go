package dataset

import (
	"strconv"
	"time"

	"github.com/John-Robertt/imdbscrape/internal/domain"
)

func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intp(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func int64p(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatp(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func datep(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Format(domain.DateLayout)
}

// Text 把单元格格式化为文本；nil 为空串。
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
