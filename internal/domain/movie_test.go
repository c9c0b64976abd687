package domain

import (
	"encoding/json"
	"testing"
)

func TestCountry_JSON(t *testing.T) {
	cases := []struct {
		c    Country
		want string
	}{
		{CountryUnknown, `null`},
		{CountryJapan, `"Japan"`},
		{CountryUSA, `"USA"`},
		{CountryJapanUSA, `"Japan | USA"`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.c)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if string(b) != tc.want {
			t.Fatalf("期望 %s，实际 %s", tc.want, string(b))
		}

		var back Country
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if back != tc.c {
			t.Fatalf("期望 %v，实际 %v", tc.c, back)
		}
	}
}

func TestParseCountry_Unknown(t *testing.T) {
	if _, err := ParseCountry("France"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	c, err := ParseCountry("")
	if err != nil || c != CountryUnknown {
		t.Fatalf("空串应为 CountryUnknown，实际 %v err=%v", c, err)
	}
}

func TestMovieRecord_DisplayTitle(t *testing.T) {
	title := "Spirited Away"
	m := MovieRecord{URL: "https://www.imdb.com/title/tt0245429/", Title: &title}
	if m.DisplayTitle() != title {
		t.Fatalf("期望 %q，实际 %q", title, m.DisplayTitle())
	}
	m.Title = nil
	if m.DisplayTitle() != m.URL {
		t.Fatalf("标题缺失时应回退为 URL，实际 %q", m.DisplayTitle())
	}
}
