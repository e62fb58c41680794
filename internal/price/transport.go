package price

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
)

var codePattern = regexp.MustCompile(`^(sh|sz|bj)\.\d{6}$`)

type FetchRequest struct {
	Code       string // exchange-prefixed, e.g. sh.600519
	StartDate  time.Time
	EndDate    time.Time
	Frequency  Frequency
	Adjust     Adjust
	OutputPath string // relative to the output dir; empty selects DefaultFileName
}

func (r FetchRequest) Validate() *apperror.AppError {
	if !codePattern.MatchString(r.Code) {
		return apperror.New(apperror.BadRequest, "code must look like sh.600519")
	}
	if r.StartDate.IsZero() {
		return apperror.New(apperror.BadRequest, "startDate is required")
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return apperror.New(apperror.BadRequest, "endDate must be after startDate")
	}
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return apperror.New(apperror.BadRequest, "frequency must be d, w or m")
	}
	switch r.Adjust {
	case AdjustNone, AdjustForward, AdjustBackward:
	default:
		return apperror.New(apperror.BadRequest, "adjust must be 1, 2 or 3")
	}
	return nil
}

// describe renders the query parameters for the run log.
func (r FetchRequest) describe() string {
	return fmt.Sprintf("%s..%s %s/%s",
		r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly), r.Frequency, r.Adjust)
}

// DefaultFileName returns {code-without-dots}_{start}_to_{end}.csv.
func DefaultFileName(code string, from, to time.Time) string {
	return fmt.Sprintf("%s_%s_to_%s.csv",
		strings.ReplaceAll(code, ".", ""), from.Format(time.DateOnly), to.Format(time.DateOnly))
}
