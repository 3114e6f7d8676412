package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DateUpscale is the magnification applied to a tightened date cell before recognition
const DateUpscale = 7

var (
	monthDayPattern = regexp.MustCompile(`(\d{1,2})\D+(\d{1,2})`)
	nonDigits       = regexp.MustCompile(`\D`)
	dateReplacer    = strings.NewReplacer("I", "1", "l", "1", `\`, "/", "|", "/")
)

// MonthDay is a parsed but not yet validated date
type MonthDay struct {
	Month int
	Day   int
}

// Valid checks month in 1..12 and day in 1..31
func (md MonthDay) Valid() bool {
	return md.Month >= 1 && md.Month <= 12 && md.Day >= 1 && md.Day <= 31
}

// DateStrategy extracts a month/day pair from normalized text
type DateStrategy struct {
	Name  string
	Parse func(text string) (MonthDay, bool)
}

// DateStrategies run in order; the first success wins and is validated afterwards
var DateStrategies = []DateStrategy{
	{Name: "separated", Parse: parseSeparated},
	{Name: "tokens", Parse: parseTokens},
	{Name: "digits", Parse: parseDigits},
}

// ParseMonthDay normalizes text and runs the strategies. A result that fails
// validation is not retried with later strategies.
func ParseMonthDay(text string) (MonthDay, bool) {
	cand := strings.TrimSpace(text)
	if cand == "" {
		return MonthDay{}, false
	}
	cand = dateReplacer.Replace(cand)
	for _, s := range DateStrategies {
		if md, ok := s.Parse(cand); ok {
			return md, md.Valid()
		}
	}
	return MonthDay{}, false
}

// FormatDate parses raw OCR output into "<Month> <day>". raw is always handed
// back for diagnostics, also when the date is unparseable.
func FormatDate(raw string) (formatted, rawOut string) {
	md, ok := ParseMonthDay(raw)
	if !ok {
		return "", raw
	}
	name, _ := MonthName(md.Month)
	return fmt.Sprintf("%s %d", name, md.Day), raw
}

func parseSeparated(s string) (MonthDay, bool) {
	m := monthDayPattern.FindStringSubmatch(s)
	if m == nil {
		return MonthDay{}, false
	}
	return atoiPair(m[1], m[2])
}

func parseTokens(s string) (MonthDay, bool) {
	var nums []string
	for _, tok := range strings.Fields(s) {
		if isDigits(tok) {
			nums = append(nums, tok)
		}
	}
	if len(nums) < 2 {
		return MonthDay{}, false
	}
	return atoiPair(nums[0], nums[1])
}

// parseDigits reads "314" as March 14 and "31" as March 1
func parseDigits(s string) (MonthDay, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	switch len(digits) {
	case 2, 3, 4:
		return atoiPair(digits[:1], digits[1:])
	}
	return MonthDay{}, false
}

func atoiPair(month, day string) (MonthDay, bool) {
	m, err := strconv.Atoi(month)
	if err != nil {
		return MonthDay{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return MonthDay{}, false
	}
	return MonthDay{Month: m, Day: d}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
