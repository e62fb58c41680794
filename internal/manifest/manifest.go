// Package manifest loads the list of fetch tasks executed by a batch run.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahmethakanbesel/cn-dataset/internal/announcement"
	"github.com/ahmethakanbesel/cn-dataset/internal/price"
)

// Manifest is an ordered list of tasks. Tasks run sequentially in file order.
type Manifest struct {
	Tasks []Task `yaml:"tasks"`
}

// Task is either a price download or an announcement search, selected by
// Kind. Fields that do not apply to the kind are ignored.
type Task struct {
	Kind   string `yaml:"kind"` // prices or announcements
	Code   string `yaml:"code"`
	Output string `yaml:"output,omitempty"`

	Start     string `yaml:"start,omitempty"` // YYYY-MM-DD
	End       string `yaml:"end,omitempty"`
	Frequency string `yaml:"frequency,omitempty"`
	Adjust    string `yaml:"adjust,omitempty"`

	Keyword     string `yaml:"keyword,omitempty"`
	Page        int    `yaml:"page,omitempty"`
	DownloadDir string `yaml:"downloadDir,omitempty"`
}

const (
	KindPrices        = "prices"
	KindAnnouncements = "announcements"
)

// Load reads and validates a YAML manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Default is the built-in batch: the Kweichow Moutai annual-report search
// followed by its forward-adjusted daily bars for 2020 through 2024.
func Default() *Manifest {
	return &Manifest{Tasks: []Task{
		{
			Kind:    KindAnnouncements,
			Code:    "600519",
			Keyword: "年报",
			Page:    1,
			Output:  announcement.DefaultFileName,
		},
		{
			Kind:      KindPrices,
			Code:      "sh.600519",
			Start:     "2020-01-01",
			End:       "2024-12-31",
			Frequency: string(price.FrequencyDaily),
			Adjust:    string(price.AdjustForward),
			Output:    "moutai_daily_qfq.csv",
		},
	}}
}

func (m *Manifest) Validate() error {
	if len(m.Tasks) == 0 {
		return fmt.Errorf("manifest has no tasks")
	}
	for i, t := range m.Tasks {
		var err error
		switch t.Kind {
		case KindPrices:
			var req price.FetchRequest
			if req, err = t.PriceRequest(); err == nil {
				if verr := req.Validate(); verr != nil {
					err = verr
				}
			}
		case KindAnnouncements:
			if verr := t.AnnouncementRequest().Validate(); verr != nil {
				err = verr
			}
		default:
			err = fmt.Errorf("unknown kind %q", t.Kind)
		}
		if err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	return nil
}

// PriceRequest converts a prices task. An empty end date is left zero.
func (t Task) PriceRequest() (price.FetchRequest, error) {
	start, err := parseDate("start", t.Start)
	if err != nil {
		return price.FetchRequest{}, err
	}
	end, err := parseDate("end", t.End)
	if err != nil {
		return price.FetchRequest{}, err
	}
	freq, err := price.ParseFrequency(t.Frequency)
	if err != nil {
		return price.FetchRequest{}, err
	}
	adj, err := price.ParseAdjust(t.Adjust)
	if err != nil {
		return price.FetchRequest{}, err
	}
	return price.FetchRequest{
		Code:       t.Code,
		StartDate:  start,
		EndDate:    end,
		Frequency:  freq,
		Adjust:     adj,
		OutputPath: t.Output,
	}, nil
}

func (t Task) AnnouncementRequest() announcement.FetchRequest {
	return announcement.FetchRequest{
		Code:        t.Code,
		Keyword:     t.Keyword,
		Page:        t.Page,
		OutputPath:  t.Output,
		DownloadDir: t.DownloadDir,
	}
}

func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q", name, s)
	}
	return d, nil
}
