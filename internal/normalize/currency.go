package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownCurrency 表示金额带有未配置汇率的货币代码。
// 调用方把它当作“字段缺失”处理，而不是模板错误。
var ErrUnknownCurrency = errors.New("未配置汇率的货币")

// Rates 是“1 美元 = rate 单位外币”的固定汇率表，键为 ISO 4217 三字母代码。
type Rates map[string]float64

// DefaultRates 是内置汇率：JPY 106.9。
func DefaultRates() Rates {
	return Rates{
		"USD": 1,
		"JPY": 106.9,
	}
}

// Currency 把 "$1,234,567" / "JPY 106,900,000" 之类的文本转换为整数美元。
//
// 规则：
// - 去掉 "$"、千分位逗号与空白
// - 前缀或后缀为三字母代码：按 rates 换算并四舍五入（银行家舍入）
// - 代码不在 rates 中：返回 ErrUnknownCurrency
// - 剩余部分不是整数：返回 *ParseError
func Currency(s string, rates Rates) (int64, error) {
	clean := strings.ReplaceAll(s, ",", "")
	clean = strings.ReplaceAll(clean, "$", "")
	clean = strings.ReplaceAll(clean, nbsp, " ")
	clean = strings.TrimSpace(clean)

	code, rest := splitCode(clean)
	rest = strings.Join(strings.Fields(rest), "")
	if rest == "" {
		return 0, &ParseError{Kind: KindCurrency, Input: s, Err: errors.New("缺少金额")}
	}

	units, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, &ParseError{Kind: KindCurrency, Input: s, Err: err}
	}
	if code == "" {
		return units, nil
	}

	rate, ok := rates[code]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w：%s", ErrUnknownCurrency, code)
	}
	return int64(math.RoundToEven(float64(units) / rate)), nil
}

// splitCode 从首尾识别三字母大写货币代码。
func splitCode(s string) (code, rest string) {
	if n := upperPrefix(s); n == 3 {
		return s[:3], s[3:]
	}
	if n := upperSuffix(s); n == 3 {
		return s[len(s)-3:], s[:len(s)-3]
	}
	return "", s
}

func upperPrefix(s string) int {
	n := 0
	for n < len(s) && s[n] >= 'A' && s[n] <= 'Z' {
		n++
	}
	return n
}

func upperSuffix(s string) int {
	n := 0
	for n < len(s) && s[len(s)-1-n] >= 'A' && s[len(s)-1-n] <= 'Z' {
		n++
	}
	return n
}
