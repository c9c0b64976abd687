package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		FirstURL:   "https://www.imdb.com/search/title/?countries=jp",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Index: 2, Status: StatusSkipped},
			SyntheticFailed(ErrCodeFetchFailed, "listing"),
			{Index: 0, Status: StatusProcessed},
			{Index: 1, Status: StatusFailed, ErrorCode: ErrCodeParseFailed},
		},
	}

	r.Finalize()

	got := []int{r.Items[0].Index, r.Items[1].Index, r.Items[2].Index, r.Items[3].Index}
	if got[0] != 0 || got[1] != 1 || got[2] != 2 || got[3] != -1 {
		t.Fatalf("items 排序不符合契约：%v", got)
	}
	if r.Summary.Processed != 1 || r.Summary.Skipped != 1 || r.Summary.Failed != 2 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_EmptyItemsMarshalAsArray(t *testing.T) {
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) {
		t.Fatalf("期望 items 输出为 []，实际：%s", string(b))
	}
}
