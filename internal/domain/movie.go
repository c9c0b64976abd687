package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Country 是详情页 Country: 标签的分类结果（只识别 Japan / USA 两个市场）。
//
// 约束：
// - 零值 CountryUnknown 表示“未找到标签”或“标签中不含 Japan/USA”，对外输出为 null
// - 其余三个值与数据集中的字符串一一对应，不允许出现其它组合
type Country int

const (
	CountryUnknown Country = iota
	CountryJapan
	CountryUSA
	CountryJapanUSA
)

var countryLabels = [...]string{
	CountryUnknown:  "",
	CountryJapan:    "Japan",
	CountryUSA:      "USA",
	CountryJapanUSA: "Japan | USA",
}

func (c Country) String() string {
	if c < 0 || int(c) >= len(countryLabels) {
		return ""
	}
	return countryLabels[c]
}

// Known 表示该值是否对应一个已识别的国家组合。
func (c Country) Known() bool { return c != CountryUnknown && c.String() != "" }

// ParseCountry 把数据集中的字符串还原为 Country；空串与 "null" 视为 CountryUnknown。
func ParseCountry(s string) (Country, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return CountryUnknown, nil
	}
	for i, l := range countryLabels {
		if l != "" && l == s {
			return Country(i), nil
		}
	}
	return CountryUnknown, fmt.Errorf("未知 country：%q", s)
}

func (c Country) MarshalJSON() ([]byte, error) {
	if !c.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

func (c *Country) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*c = CountryUnknown
		return nil
	}
	v, err := ParseCountry(*s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MovieRecord 是一个详情页的扁平化结果。
//
// 约束：
// - 由 assemble 一次性构造，返回后不再修改
// - 每个字段独立为空（nil），缺失的页面区块从不导致错误
// - JapanReleaseDate 只在 Country=Japan 时可能非空；USAReleaseDate 只在 USA / Japan | USA 时可能非空
type MovieRecord struct {
	URL string `json:"url"`

	Title               *string    `json:"title"`
	Country             Country    `json:"country"`
	RuntimeMinutes      *int       `json:"runtime_minutes"`
	Budget              *int64     `json:"budget"`
	GlobalGross         *int64     `json:"global_gross"`
	MPAARating          *string    `json:"mpaa_rating"`
	JapanReleaseDate    *time.Time `json:"japan_release_date"`
	USAReleaseDate      *time.Time `json:"usa_release_date"`
	Genres              []string   `json:"genres"`
	IMDbUserRating      *float64   `json:"imdb_user_rating"`
	IMDbUserRatingCount *int       `json:"imdb_user_rating_count"`
	OscarWins           *int       `json:"oscar_wins"`
	NonOscarWins        *int       `json:"non_oscar_wins"`
	Metascore           *int       `json:"metascore"`
}

// Columns 是数据集的固定列顺序（不含 url 与 is_<genre> 列）。
var Columns = []string{
	"title",
	"country",
	"runtime_minutes",
	"budget",
	"global_gross",
	"mpaa_rating",
	"japan_release_date",
	"usa_release_date",
	"genres",
	"imdb_user_rating",
	"imdb_user_rating_count",
	"oscar_wins",
	"non_oscar_wins",
	"metascore",
}

// DateLayout 是发行日期在数据集中的文本格式。
const DateLayout = "2006-01-02"

// DisplayTitle 用于日志与报告：标题缺失时回退为 URL。
func (m MovieRecord) DisplayTitle() string {
	if m.Title != nil && strings.TrimSpace(*m.Title) != "" {
		return *m.Title
	}
	return m.URL
}
