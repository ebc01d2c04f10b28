package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"kuberx/internal/core"
)

var ErrNoJSON = errors.New("no JSON object in model output")

const extractionSystem = "You are a data extraction assistant. Always respond with valid JSON only, no extra text."

const extractionPrompt = `Extract the following loan details from the unstructured text below.
The text may be in Hindi, English or both.

Rules:
1. Name: give it in BOTH Hindi and English. If only one is present, transliterate to the other.
2. Address: give it in BOTH Hindi and English. If only one is present, transliterate to the other.
3. Ward/Area: locality or ward information (e.g. "नए वार्ड", "वार्ड 5").
4. Date: format as DD/MM/YYYY. If the year is missing use %d.
5. Mobile: digits only.
6. Amount: the numeric value only (for "5000 रुपये" answer "5000").
7. Interest: percentage or amount (e.g. "5%%" or "250").
8. Guarantee: the guarantee period converted to months ("1 साल" or "1 year" is "12", "30 days" is "1").
9. Relationship: the reference person (e.g. "पिता राम लाल", "Wife: Pramila Devi").

Respond with exactly this JSON object and write "Not mentioned" for anything absent:
{
  "date": "DD/MM/YYYY",
  "nameHindi": "",
  "nameEnglish": "",
  "addressHindi": "",
  "addressEnglish": "",
  "wardArea": "",
  "mobile": "",
  "pageNumber": "",
  "dairyNumber": "",
  "amount": "",
  "interest": "",
  "guarantee": "",
  "relationship": ""
}

## Input:
%s`

// DefaultFields fill keys the model leaves out.
var DefaultFields = map[string]string{
	"dairyNumber": "d2",
}

var fencePattern = regexp.MustCompile("```(?:json|JSON)?")

// Extractor turns free text describing a loan into a draft loan.
type Extractor struct {
	gen Generator
	now func() time.Time
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen, now: time.Now}
}

// Extract asks the model for the loan fields. The draft has no record id
// and no status; "Not mentioned" values come back empty and the date is
// normalized to DD/MM/YYYY when it can be read.
func (e *Extractor) Extract(ctx context.Context, text string) (core.Loan, error) {
	if e == nil || e.gen == nil {
		return core.Loan{}, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return core.Loan{}, errors.New("empty input text")
	}
	out, err := e.gen.Generate(ctx, Request{
		System: extractionSystem,
		Prompt: fmt.Sprintf(extractionPrompt, e.now().Year(), text),
		JSON:   true,
	})
	if err != nil {
		return core.Loan{}, fmt.Errorf("generate: %w", err)
	}
	fields, err := ParseObject(out)
	if err != nil {
		return core.Loan{}, err
	}
	return loanFromFields(fields), nil
}

// ParseObject recovers the first JSON object from model output. Code fences
// are dropped, broken JSON is repaired, and Hjson is the last resort.
func ParseObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	if text == "" {
		return nil, ErrNoJSON
	}
	candidate := firstObject(text)
	if candidate == "" {
		candidate = text
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err == nil && out != nil {
		return out, nil
	}
	if repaired, err := jsonrepair.RepairJSON(candidate); err == nil {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil && out != nil {
			return out, nil
		}
	}
	if err := hjson.Unmarshal([]byte(candidate), &out); err == nil && out != nil {
		return out, nil
	}
	return nil, ErrNoJSON
}

// firstObject returns the first balanced {...} span, honouring strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// unbalanced: hand the tail to the repairer
	return s[start:]
}

func loanFromFields(fields map[string]any) core.Loan {
	get := func(key string) string {
		v, ok := fields[key]
		if !ok || v == nil {
			return DefaultFields[key]
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if f, ok := v.(float64); ok {
			s = strings.TrimSpace(fmt.Sprintf("%.10g", f))
		}
		if s == core.NotMentioned || strings.EqualFold(s, "not mentioned") {
			return ""
		}
		return s
	}
	return core.Loan{
		Date:           core.NormalizeDate(get("date")),
		NameHindi:      get("nameHindi"),
		NameEnglish:    get("nameEnglish"),
		AddressHindi:   get("addressHindi"),
		AddressEnglish: get("addressEnglish"),
		Ward:           get("wardArea"),
		Mobile:         get("mobile"),
		DairyNumber:    get("dairyNumber"),
		PageNumber:     get("pageNumber"),
		Amount:         get("amount"),
		Interest:       get("interest"),
		Guarantee:      get("guarantee"),
		Relationship:   get("relationship"),
	}
}
