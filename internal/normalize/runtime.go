package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Runtime 把 "2h 15min" 解析为分钟数 H*60+M。
//
// 约束：去掉 "h"/"min" 后必须恰好剩两个整数 token；"90min" 这类单 token 输入视为文法不符。
func Runtime(s string) (int, error) {
	clean := strings.ReplaceAll(s, "h", "")
	clean = strings.ReplaceAll(clean, "min", "")
	toks := strings.Fields(clean)
	if len(toks) != 2 {
		return 0, &ParseError{Kind: KindRuntime, Input: s, Err: fmt.Errorf("期望 2 个数字，实际 %d 个", len(toks))}
	}

	h, err := strconv.Atoi(toks[0])
	if err != nil {
		return 0, &ParseError{Kind: KindRuntime, Input: s, Err: err}
	}
	m, err := strconv.Atoi(toks[1])
	if err != nil {
		return 0, &ParseError{Kind: KindRuntime, Input: s, Err: err}
	}
	return h*60 + m, nil
}
