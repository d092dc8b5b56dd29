package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/forest-guardian/canasat/internal/sentinel"
)

var (
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)
)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(w io.Writer, message string) {
	warnColor.Fprintln(w, "\nWarning:")
	warnColor.Fprintln(w, message)
}

// PrintError displays an error message with consistent formatting
func PrintError(w io.Writer, message string) {
	errorColor.Fprintf(w, "\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(w io.Writer, message string) {
	successColor.Fprintf(w, "\n%s\n", message)
}

func PrintInfo(w io.Writer, message string) {
	infoColor.Fprintln(w, message)
}

// ParseDate accepts YYYY-MM-DD or "today".
func ParseDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "today" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(time.DateOnly, input)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s. Please use YYYY-MM-DD", input)
	}
	return date, nil
}

// ParseDateRange resolves --date or --date-range into an inclusive range.
func ParseDateRange(date string, dateRange []string) (time.Time, time.Time, error) {
	switch {
	case date != "" && len(dateRange) > 0:
		return time.Time{}, time.Time{}, fmt.Errorf("use either --date or --date-range")
	case date != "":
		d, err := ParseDate(date)
		return d, d, err
	case len(dateRange) == 2:
		start, err := ParseDate(dateRange[0])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := ParseDate(dateRange[1])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("date range end %s is before start %s", dateRange[1], dateRange[0])
		}
		return start, end, nil
	case len(dateRange) != 0:
		return time.Time{}, time.Time{}, fmt.Errorf("--date-range expects START END")
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("one of --date or --date-range is required")
	}
}

// ParseCloud reads "MIN,MAX" percentages.
func ParseCloud(input string) (sentinel.CloudRange, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return sentinel.CloudRange{}, fmt.Errorf("invalid cloud range %q, expected MIN,MAX", input)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return sentinel.CloudRange{}, fmt.Errorf("invalid cloud minimum %q: %w", parts[0], err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return sentinel.CloudRange{}, fmt.Errorf("invalid cloud maximum %q: %w", parts[1], err)
	}
	if lo < 0 || hi > 100 || lo > hi {
		return sentinel.CloudRange{}, fmt.Errorf("cloud range must satisfy 0 <= MIN <= MAX <= 100, got %s", input)
	}
	return sentinel.CloudRange{Min: lo, Max: hi}, nil
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func requireFile(path, what string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s not found: %s", what, path)
	}
	return nil
}
