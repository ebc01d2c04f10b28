package core

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`),
	regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`),
	regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2})`),
}

// NormalizeDate rewrites a loosely formatted date as DD/MM/YYYY.
// Two-digit years are taken as 20YY. Text that does not contain a valid date
// is returned unchanged; empty and "Not mentioned" become "".
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == NotMentioned {
		return ""
	}
	for i, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var day, month, year string
		switch i {
		case 0:
			year, month, day = m[1], m[2], m[3]
		case 1:
			day, month, year = m[1], m[2], m[3]
		default:
			day, month, year = m[1], m[2], "20"+m[3]
		}
		d, _ := strconv.Atoi(day)
		mo, _ := strconv.Atoi(month)
		y, _ := strconv.Atoi(year)
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		if t.Day() != d || int(t.Month()) != mo {
			continue
		}
		return fmt.Sprintf("%02d/%02d/%04d", d, mo, y)
	}
	return s
}

// NewRecordID builds "<first name token>_<date digits>_<4 random digits>".
// The name token keeps letters and digits (Devanagari included) and is cut
// to ten runes; the date part falls back to now when date is blank.
func NewRecordID(name, date string, now time.Time, rng *rand.Rand) string {
	token := "Unknown"
	if fields := strings.Fields(name); len(fields) > 0 && name != NotMentioned {
		token = fields[0]
	}
	token = cleanToken(token, 10)
	if token == "" {
		token = "Unknown"
	}

	datePart := now.Format("02012006")
	if !isBlank(date) {
		datePart = strings.NewReplacer("/", "", "-", "").Replace(strings.TrimSpace(date))
		if r := []rune(datePart); len(r) > 8 {
			datePart = string(r[:8])
		}
	}

	var n int
	if rng != nil {
		n = rng.IntN(10000)
	} else {
		n = rand.IntN(10000)
	}
	return fmt.Sprintf("%s_%s_%04d", token, datePart, n)
}

func cleanToken(s string, max int) string {
	out := make([]rune, 0, max)
	for _, r := range s {
		if len(out) == max {
			break
		}
		if isASCIIAlnum(r) || unicode.In(r, unicode.Devanagari) {
			out = append(out, r)
		}
	}
	return string(out)
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
