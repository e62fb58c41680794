package announcement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/table"
)

// Column names as returned by the registry, plus the derived URL column.
const (
	ColumnTitle       = "announcementTitle"
	ColumnTime        = "announcementTime"
	ColumnAdjunctURL  = "adjunctUrl"
	ColumnDocumentURL = "pdf_url"

	DefaultStaticHost = "https://static.cninfo.com.cn/"
	DefaultFileName   = "announcements.csv"
)

// OutputColumns is the persisted column subset, in order.
var OutputColumns = []string{ColumnTitle, ColumnTime, ColumnDocumentURL}

// Record is one persisted announcement.
type Record struct {
	Title string
	Time  time.Time
	URL   string
}

// AssembleURLs appends the pdf_url column, prefixing each row's relative
// adjunctUrl with staticHost. It fails when the table has no adjunctUrl column.
func AssembleURLs(t *table.Table, staticHost string) error {
	idx := t.Index(ColumnAdjunctURL)
	if idx < 0 {
		return fmt.Errorf("announcement table has no %s column", ColumnAdjunctURL)
	}
	return t.AddColumn(ColumnDocumentURL, func(row []string) (string, error) {
		return DocumentURL(staticHost, row[idx]), nil
	})
}

// DocumentURL joins the static asset host and a relative document path.
func DocumentURL(staticHost, relative string) string {
	return strings.TrimSuffix(staticHost, "/") + "/" + strings.TrimPrefix(relative, "/")
}

// Records parses a table holding OutputColumns. announcementTime is epoch
// milliseconds; an empty cell leaves Time zero.
func Records(t *table.Table) ([]Record, error) {
	sel, err := t.Select(OutputColumns...)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, sel.Len())
	for i, row := range sel.Rows {
		rec := Record{Title: row[0], URL: row[2]}
		if row[1] != "" {
			ms, err := strconv.ParseInt(row[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse %s: %w", i, ColumnTime, err)
			}
			rec.Time = time.UnixMilli(ms).UTC()
		}
		out = append(out, rec)
	}
	return out, nil
}
