package snapshot

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/imdbscrape/internal/infra/fsx"
)

// Store 把抓取到的原始 HTML 落到 <Root>/<host>/ 下，供排查模板漂移时对照。
//
// 约束：
// - 只写不读：每次运行都重新抓取，快照从不作为输入
// - Root 为空表示禁用（Save 直接返回 nil）
type Store struct {
	Root string
}

var ErrDisabled = errors.New("snapshot: 未启用")

func New(root string) Store {
	root = strings.TrimSpace(root)
	if root == "" {
		return Store{}
	}
	return Store{Root: filepath.Clean(root)}
}

func (s Store) Enabled() bool { return s.Root != "" }

// Path 返回某个 URL 对应的快照文件路径。
func (s Store) Path(rawURL string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	host, name, err := fileName(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, host, name), nil
}

// Save 原子写入（覆盖）某个 URL 的 HTML。
func (s Store) Save(rawURL string, html []byte) error {
	if !s.Enabled() {
		return nil
	}
	host, name, err := fileName(rawURL)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Join(s.Root, host), name, html)
}

var unsafeRE = regexp.MustCompile(`[^a-z0-9_.-]+`)

const maxStem = 96

// fileName 把 URL 映射为稳定、无路径穿越的文件名。
// 同一路径不同查询串（列表页分页）必须得到不同文件，因此带上整个 URL 的短哈希。
func fileName(rawURL string) (host, name string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("url 缺少 host：%q", rawURL)
	}

	host = strings.Trim(unsafeRE.ReplaceAllString(strings.ToLower(u.Host), "_"), "._")
	stem := strings.Trim(unsafeRE.ReplaceAllString(strings.ToLower(u.Path), "_"), "._")
	if stem == "" {
		stem = "index"
	}
	if len(stem) > maxStem {
		stem = stem[:maxStem]
	}

	sum := sha1.Sum([]byte(u.String()))
	return host, stem + "-" + hex.EncodeToString(sum[:4]) + ".html", nil
}
