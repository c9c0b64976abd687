package extract

// 站点模板相关的全部定位信息集中在这里；模板漂移时只需改这张表。
const (
	selTitle         = "h1"
	selLabelHeading  = "h4"
	selRuntime       = "time"
	selSubtext       = "div.subtext"
	selUSARelease    = "[title='See more release dates']"
	selJapanCalendar = "[href='/calendar/?region=jp']"
	selRatingValue   = "span[itemprop=ratingValue]"
	selRatingCount   = "[itemprop=ratingCount]"
	selAwards        = "span.awards-blurb"
	selMetascore     = "div.metacriticScore"

	labelCountry = "Country:"
	labelBudget  = "Budget:"
	labelGross   = "Cumulative Worldwide Gross:"
	labelGenres  = "Genres:"

	suffixUSA = " (USA)"
)

// mpaaRatings 是 mpaa_rating 允许的取值；其它评级机构的文本一律丢弃。
var mpaaRatings = map[string]struct{}{
	"G":     {},
	"PG":    {},
	"PG-13": {},
	"R":     {},
	"TV-PG": {},
	"TV-MA": {},
}
