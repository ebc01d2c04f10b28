package core

import (
	"errors"
	"strings"
)

const (
	StatusActive LoanStatus = "Active"
	StatusClosed LoanStatus = "Closed"
)

// Column positions of a loan row (sheet columns A..O).
const (
	ColRecordID = iota
	ColDate
	ColNameHindi
	ColNameEnglish
	ColAddressHindi
	ColAddressEnglish
	ColWard
	ColMobile
	ColDairyNumber
	ColPageNumber
	ColAmount
	ColInterest
	ColGuarantee
	ColRelationship
	ColStatus

	NumColumns
)

// MinCompleteFields is the shortest row that still carries an amount.
const MinCompleteFields = ColAmount + 1

// NotMentioned is the placeholder the extractor emits for missing values.
const NotMentioned = "Not mentioned"

// Header is the canonical first row of the loan sheet.
var Header = []string{
	"recordId", "date", "nameHindi", "nameEnglish", "addressHindi",
	"addressEnglish", "wardArea", "mobile", "dairyNumber", "pageNumber",
	"amount", "interest", "guarantee", "relationship", "loanStatus",
}

type (
	LoanStatus string

	// Loan is a single ledger entry in its stored text form.
	Loan struct {
		RecordID       string
		Date           string
		NameHindi      string
		NameEnglish    string
		AddressHindi   string
		AddressEnglish string
		Ward           string
		Mobile         string
		DairyNumber    string
		PageNumber     string
		Amount         string
		Interest       string
		Guarantee      string
		Relationship   string
		Status         LoanStatus
	}
)

var (
	ErrMissingRecordID = errors.New("missing record id")
	ErrMissingDate     = errors.New("missing date")
	ErrMissingName     = errors.New("missing borrower name")
	ErrMissingAmount   = errors.New("missing amount")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid loan status")
)

// ParseStatus maps free text onto a status, ignoring case and surrounding
// space. Empty text is Active.
func ParseStatus(s string) (LoanStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return StatusActive, nil
	case "closed":
		return StatusClosed, nil
	}
	return "", ErrInvalidStatus
}

func (s LoanStatus) Validate() error {
	if s != StatusActive && s != StatusClosed {
		return ErrInvalidStatus
	}
	return nil
}

func (l Loan) Validate() error {
	if isBlank(l.RecordID) {
		return ErrMissingRecordID
	}
	if isBlank(l.Date) {
		return ErrMissingDate
	}
	if isBlank(l.NameEnglish) && isBlank(l.NameHindi) {
		return ErrMissingName
	}
	if isBlank(l.Amount) {
		return ErrMissingAmount
	}
	if ParseAmount(l.Amount).IsZero() {
		return ErrInvalidAmount
	}
	if l.Status != "" {
		if err := l.Status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DisplayName prefers the English name.
func (l Loan) DisplayName() string {
	if n := strings.TrimSpace(l.NameEnglish); n != "" && n != NotMentioned {
		return n
	}
	return strings.TrimSpace(l.NameHindi)
}

// Row renders the loan in column order. An empty status is stored as Active.
func (l Loan) Row() []string {
	status := l.Status
	if status == "" {
		status = StatusActive
	}
	return []string{
		l.RecordID, l.Date, l.NameHindi, l.NameEnglish, l.AddressHindi,
		l.AddressEnglish, l.Ward, l.Mobile, l.DairyNumber, l.PageNumber,
		l.Amount, l.Interest, l.Guarantee, l.Relationship, string(status),
	}
}

// LoanFromRow is the inverse of Row. Short rows leave trailing fields empty
// and default the status to Active.
func LoanFromRow(row []string) Loan {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	status, err := ParseStatus(get(ColStatus))
	if err != nil {
		status = LoanStatus(get(ColStatus))
	}
	return Loan{
		RecordID:       get(ColRecordID),
		Date:           get(ColDate),
		NameHindi:      get(ColNameHindi),
		NameEnglish:    get(ColNameEnglish),
		AddressHindi:   get(ColAddressHindi),
		AddressEnglish: get(ColAddressEnglish),
		Ward:           get(ColWard),
		Mobile:         get(ColMobile),
		DairyNumber:    get(ColDairyNumber),
		PageNumber:     get(ColPageNumber),
		Amount:         get(ColAmount),
		Interest:       get(ColInterest),
		Guarantee:      get(ColGuarantee),
		Relationship:   get(ColRelationship),
		Status:         status,
	}
}

func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NotMentioned
}
