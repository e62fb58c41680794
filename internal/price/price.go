package price

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/table"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "d"
	FrequencyWeekly  Frequency = "w"
	FrequencyMonthly Frequency = "m"
)

// ParseFrequency accepts provider codes (d/w/m) and their English names.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d", "day", "daily":
		return FrequencyDaily, nil
	case "w", "week", "weekly":
		return FrequencyWeekly, nil
	case "m", "month", "monthly":
		return FrequencyMonthly, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// Adjust selects how historical prices are rebased for splits and dividends.
type Adjust string

const (
	AdjustBackward Adjust = "1"
	AdjustForward  Adjust = "2"
	AdjustNone     Adjust = "3"
)

// ParseAdjust accepts provider codes (1/2/3) and the usual qfq/hfq aliases.
func ParseAdjust(s string) (Adjust, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "3", "none":
		return AdjustNone, nil
	case "2", "qfq", "forward":
		return AdjustForward, nil
	case "1", "hfq", "backward":
		return AdjustBackward, nil
	}
	return "", fmt.Errorf("unknown adjustment %q", s)
}

var dailyFields = []string{
	"date", "code", "open", "high", "low", "close", "volume", "amount",
	"adjustflag", "turn", "peTTM", "pbMRQ", "psTTM", "pctChg",
}

// The provider serves no valuation ratios on weekly and monthly bars.
var periodFields = []string{
	"date", "code", "open", "high", "low", "close", "volume", "amount",
	"adjustflag", "turn", "pctChg",
}

// Fields returns the column set requested for f.
func Fields(f Frequency) []string {
	if f == FrequencyDaily {
		return dailyFields
	}
	return periodFields
}

// Bar is one price bar. Missing numeric cells are zero.
type Bar struct {
	Date       time.Time
	Code       string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	Amount     float64
	AdjustFlag Adjust
	Turn       float64
	PeTTM      float64
	PbMRQ      float64
	PsTTM      float64
	PctChg     float64
}

// Bars parses the rows of a fetched price table.
func Bars(t *table.Table) ([]Bar, error) {
	col := func(row []string, name string) string {
		if i := t.Index(name); i >= 0 {
			return row[i]
		}
		return ""
	}
	if t.Index("date") < 0 {
		return nil, fmt.Errorf("price table has no date column")
	}

	bars := make([]Bar, 0, t.Len())
	for i, row := range t.Rows {
		date, err := time.Parse(time.DateOnly, col(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: parse date: %w", i, err)
		}
		b := Bar{
			Date:       date,
			Code:       col(row, "code"),
			AdjustFlag: Adjust(col(row, "adjustflag")),
		}

		p := numParser{row: i}
		b.Open = p.decimal("open", col(row, "open"))
		b.High = p.decimal("high", col(row, "high"))
		b.Low = p.decimal("low", col(row, "low"))
		b.Close = p.decimal("close", col(row, "close"))
		b.Volume = p.integer("volume", col(row, "volume"))
		b.Amount = p.decimal("amount", col(row, "amount"))
		b.Turn = p.decimal("turn", col(row, "turn"))
		b.PeTTM = p.decimal("peTTM", col(row, "peTTM"))
		b.PbMRQ = p.decimal("pbMRQ", col(row, "pbMRQ"))
		b.PsTTM = p.decimal("psTTM", col(row, "psTTM"))
		b.PctChg = p.decimal("pctChg", col(row, "pctChg"))
		if p.err != nil {
			return nil, p.err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// numParser keeps the first parse error so a row can be read field by field.
type numParser struct {
	row int
	err error
}

func (p *numParser) decimal(name, s string) float64 {
	if p.err != nil || s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("row %d: parse %s: %w", p.row, name, err)
	}
	return v
}

func (p *numParser) integer(name, s string) int64 {
	if p.err != nil || s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// volume is occasionally reported with a decimal part
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			p.err = fmt.Errorf("row %d: parse %s: %w", p.row, name, err)
			return 0
		}
		return int64(f)
	}
	return v
}
