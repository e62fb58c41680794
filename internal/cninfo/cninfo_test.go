package cninfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

const samplePage = `{
  "totalAnnouncement": 2,
  "announcements": [
    {
      "announcementId": "1219374585",
      "secCode": "600519",
      "secName": "贵州茅台",
      "announcementTitle": "贵州茅台2023年年度报告",
      "announcementTime": 1711641600000,
      "adjunctUrl": "finalpage/2024-03-29/1219374585.PDF",
      "adjunctSize": 1840,
      "important": null
    },
    {
      "announcementId": "1216290580",
      "secCode": "600519",
      "announcementTitle": "贵州茅台2022年年度报告摘要",
      "announcementTime": 1680192000000,
      "adjunctUrl": "finalpage/2023-03-31/1216290580.PDF"
    }
  ]
}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("searchkey") != "600519 年报" {
			t.Errorf("unexpected searchkey %q", q.Get("searchkey"))
		}
		if q.Get("pageSize") != "40" {
			t.Errorf("expected pageSize=40, got %s", q.Get("pageSize"))
		}
		if r.Header.Get("Referer") != "https://www.cninfo.com.cn" {
			t.Errorf("unexpected referer %q", r.Header.Get("Referer"))
		}
		if r.Header.Get("User-Agent") != "Mozilla/5.0" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return ts, New(WithClient(ts.Client()), WithSearchEndpoint(ts.URL))
}

func TestSearch(t *testing.T) {
	_, c := newTestServer(t, http.StatusOK, samplePage)

	tbl, err := c.Search(context.Background(), "600519", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if !slices.IsSorted(tbl.Columns) {
		t.Errorf("expected sorted columns, got %v", tbl.Columns)
	}

	times, _ := tbl.Column("announcementTime")
	if times[0] != "1711641600000" {
		t.Errorf("expected timestamp verbatim, got %s", times[0])
	}
	names, _ := tbl.Column("secName")
	if names[1] != "" {
		t.Errorf("expected missing key to be empty, got %q", names[1])
	}
	important, _ := tbl.Column("important")
	if important[0] != "" {
		t.Errorf("expected null to be empty, got %q", important[0])
	}
}

func TestSearch_PageParameter(t *testing.T) {
	var gotPage string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("pageNum")
		_, _ = w.Write([]byte(`{"announcements":[]}`))
	}))
	defer ts.Close()

	c := New(WithClient(ts.Client()), WithSearchEndpoint(ts.URL))
	if _, err := c.Search(context.Background(), "600519", "年报", 3); err != nil {
		t.Fatal(err)
	}
	if gotPage != "3" {
		t.Errorf("expected pageNum=3, got %s", gotPage)
	}
}

func TestSearch_HTTPError(t *testing.T) {
	_, c := newTestServer(t, http.StatusBadGateway, "")
	if _, err := c.Search(context.Background(), "600519", "", 1); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSearch_BadJSON(t *testing.T) {
	_, c := newTestServer(t, http.StatusOK, "<html>")
	if _, err := c.Search(context.Background(), "600519", "", 1); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSearch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	hc := ts.Client()
	hc.Timeout = 50 * time.Millisecond
	c := New(WithClient(hc), WithSearchEndpoint(ts.URL))
	if _, err := c.Search(context.Background(), "600519", "", 1); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"announcements":null}`))
	}))
	defer ts.Close()

	c := New(WithClient(ts.Client()), WithSearchEndpoint(ts.URL))
	tbl, err := c.Search(context.Background(), "600519", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 || len(tbl.Columns) != 0 {
		t.Errorf("expected empty table, got %d rows %v", tbl.Len(), tbl.Columns)
	}
}
