package watch

import (
	"net/url"
	"strings"
	"time"
)

const startDateParam = "start_date"

// Windows expands one query template into the ordered dated queries covering
// horizonDays from today, chunked into windowDays-sized windows (the upstream
// API serves at most windowDays per call). Window i starts at
// today + i*windowDays. The template is not validated here; a malformed
// template simply fails at fetch time.
func Windows(template string, today time.Time, horizonDays, windowDays int) []string {
	if horizonDays <= 0 || windowDays <= 0 {
		return nil
	}
	count := (horizonDays + windowDays - 1) / windowDays
	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		start := today.AddDate(0, 0, i*windowDays)
		urls = append(urls, WithStartDate(template, start))
	}
	return urls
}

// WithStartDate returns the template with its start_date parameter set to day.
// An existing start_date is replaced in place, preserving the order of the
// other parameters (including repeated ones); otherwise the parameter is
// appended, picking '?' or '&' based on whether a query string is present.
func WithStartDate(template string, day time.Time) string {
	date := startDateParam + "=" + day.Format("2006-01-02")

	base, rawQuery, hasQuery := strings.Cut(template, "?")
	if !hasQuery {
		return base + "?" + date
	}
	if rawQuery == "" {
		return base + "?" + date
	}

	pairs := strings.Split(rawQuery, "&")
	replaced := false
	for i, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if key == startDateParam {
			pairs[i] = date
			replaced = true
		}
	}
	if !replaced {
		pairs = append(pairs, date)
	}
	return base + "?" + strings.Join(pairs, "&")
}
