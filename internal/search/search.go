// Package search finds loans in a snapshot by text, by field, by embedding
// similarity or by asking a language model.
package search

import (
	"errors"
	"strings"

	"kuberx/internal/analytics"
	"kuberx/internal/core"
)

type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeSemantic Mode = "semantic"
	ModeDeep     Mode = "deep"
)

type Field string

const (
	FieldAll      Field = "all"
	FieldName     Field = "name"
	FieldWard     Field = "ward"
	FieldMobile   Field = "mobile"
	FieldRecordID Field = "recordId"
)

var (
	ErrUnknownMode  = errors.New("unknown search mode")
	ErrUnknownField = errors.New("unknown search field")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBasic, nil
	case ModeBasic, ModeSemantic, ModeDeep:
		return m, nil
	}
	return "", ErrUnknownMode
}

func ParseField(s string) (Field, error) {
	switch f := Field(strings.TrimSpace(s)); f {
	case "":
		return FieldAll, nil
	case FieldAll, FieldName, FieldWard, FieldMobile, FieldRecordID:
		return f, nil
	}
	if strings.EqualFold(s, string(FieldRecordID)) {
		return FieldRecordID, nil
	}
	return "", ErrUnknownField
}

// Basic returns the active loans whose identifying text contains q,
// ignoring case. A blank query matches nothing.
func Basic(t analytics.Table, q string) []analytics.Record {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]analytics.Record, 0)
	if q == "" {
		return out
	}
	for _, r := range t.Active() {
		if strings.Contains(strings.ToLower(searchable(r.Loan)), q) {
			out = append(out, r)
		}
	}
	return out
}

// minFieldRows is the shortest row ByField looks at.
const minFieldRows = 4

// ByField filters every loan, open or closed, on one field. A blank query
// returns all rows long enough to carry a name.
func ByField(t analytics.Table, q string, field Field) ([]analytics.Record, error) {
	match, err := matcher(field)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]analytics.Record, 0)
	for _, r := range t.Records {
		if r.Fields < minFieldRows {
			continue
		}
		if q == "" || match(r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matcher(field Field) (func(analytics.Record, string) bool, error) {
	has := func(s, q string) bool { return strings.Contains(strings.ToLower(s), q) }
	switch field {
	case FieldAll, "":
		return func(r analytics.Record, q string) bool {
			return has(strings.Join(r.Loan.Row()[:min(r.Fields, core.NumColumns)], " "), q)
		}, nil
	case FieldName:
		return func(r analytics.Record, q string) bool {
			return has(r.Loan.NameHindi, q) || has(r.Loan.NameEnglish, q)
		}, nil
	case FieldWard:
		return func(r analytics.Record, q string) bool { return has(r.Loan.Ward, q) }, nil
	case FieldMobile:
		return func(r analytics.Record, q string) bool { return has(r.Loan.Mobile, q) }, nil
	case FieldRecordID:
		return func(r analytics.Record, q string) bool { return has(r.Loan.RecordID, q) }, nil
	}
	return nil, ErrUnknownField
}

func searchable(l core.Loan) string {
	return strings.Join([]string{
		l.RecordID, l.NameHindi, l.NameEnglish, l.AddressHindi,
		l.AddressEnglish, l.Ward, l.Mobile, l.Relationship,
	}, " ")
}
