// Package normalize 把详情页上的原始文本片段转换为强类型值。
//
// 约束：
// - 所有函数都是纯函数：不访问网络、不读写文件、无全局可变状态
// - “片段存在但语法不符”返回 *ParseError，由调用方决定如何上报
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind 标识 ParseError 来自哪一类文法。
type Kind string

const (
	KindCurrency Kind = "currency"
	KindDate     Kind = "date"
	KindRuntime  Kind = "runtime"
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	// KindLayout 表示页面缺少必需的结构（如列表页的结果容器）。
	KindLayout   Kind = "layout"
)

// ParseError 表示找到了字段标记，但其文本不符合预期文法。
// 这通常意味着站点模板发生了变化，必须向上传播而不是静默置空。
type ParseError struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s 解析失败：%q：%v", e.Kind, e.Input, e.Err)
	}
	return fmt.Sprintf("%s 解析失败：%q", e.Kind, e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError 判断 err 链中是否包含 *ParseError。
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

const nbsp = "\u00a0"

// IntCommas 去掉千分位逗号后解析整数。
func IntCommas(s string) (int, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	n, err := strconv.Atoi(clean)
	if err != nil {
		return 0, &ParseError{Kind: KindInteger, Input: s, Err: err}
	}
	return n, nil
}

// Float 解析形如 "8.6" 的评分文本。
func Float(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &ParseError{Kind: KindFloat, Input: s, Err: err}
	}
	return f, nil
}

// FirstInt 返回第一个完全由 ASCII 数字组成的空白分隔 token。
// 形如 "2." 或 "#12" 的 token 不算数。
func FirstInt(s string) (int, bool) {
	for _, tok := range strings.Fields(s) {
		if !allDigits(tok) {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// List 去掉 label 前缀与 NBSP 残留后，按 "|" 切分为有序的标签列表。
// 空白项会被丢弃；顺序与页面一致，不去重。
func List(s, label string) []string {
	if label != "" {
		s = strings.Replace(s, label, "", 1)
	}
	s = strings.ReplaceAll(s, nbsp, " ")

	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// CutNBSP 截掉第一个 NBSP 及其后的全部内容（标题后常跟 "&nbsp;(2001)"）。
func CutNBSP(s string) string {
	if i := strings.Index(s, nbsp); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
