package service

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
	"github.com/shopspring/decimal"
)

// Form block ids used as validation error keys
const (
	BlockTitle     = "expense_title_block"
	BlockAmount    = "amount_block"
	BlockUsageDate = "usage_date_block"
	BlockRemarks   = "remarks_block"
)

// UsageDateLayout is the accepted format of the usage date field
const UsageDateLayout = "2006-01-02"

const (
	msgTitleRequired    = "経費内容を入力してください"
	msgAmountInvalid    = "金額は半角の数値で入力してください"
	msgUsageDateInvalid = "利用日は YYYY-MM-DD 形式で入力してください"
)

var nonAmountChars = regexp.MustCompile(`[^0-9.]`)

var (
	errAmountNegative    = errors.New("amount must not be negative")
	errAmountNotPositive = errors.New("amount must be greater than zero")
)

// ValidationError carries one message per invalid form block
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("submission validation failed: %s", strings.Join(keys, ", "))
}

// ParsedSubmission holds validated form values
type ParsedSubmission struct {
	Title     string
	Amount    decimal.Decimal
	UsageDate time.Time
	Remarks   string
}

// UsageDateString returns the usage date as stored in the ledger
func (p *ParsedSubmission) UsageDateString() string {
	return p.UsageDate.Format(UsageDateLayout)
}

// ParseSubmission validates every required field independently and reports
// all failures together.
func ParseSubmission(s event.Submission) (*ParsedSubmission, error) {
	fields := make(map[string]string)
	parsed := &ParsedSubmission{
		Title:   strings.TrimSpace(s.Title),
		Remarks: strings.TrimSpace(s.Remarks),
	}

	if parsed.Title == "" {
		fields[BlockTitle] = msgTitleRequired
	}

	amount, err := ParseAmount(s.Amount)
	if err != nil {
		fields[BlockAmount] = msgAmountInvalid
	}
	parsed.Amount = amount

	date, err := ParseUsageDate(s.UsageDate)
	if err != nil {
		fields[BlockUsageDate] = msgUsageDateInvalid
	}
	parsed.UsageDate = date

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return parsed, nil
}

// ParseAmount strips everything but digits and dots ("¥1,000" -> 1000). Any
// minus sign rejects the value outright so "-5" never becomes 5.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if strings.ContainsAny(raw, "-−－") {
		return decimal.Zero, errAmountNegative
	}
	normalized := nonAmountChars.ReplaceAllString(raw, "")
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, errAmountNotPositive
	}
	return amount, nil
}

// storedUsageDateLayouts adds the slash form a sheet may display after a
// USER_ENTERED write
var storedUsageDateLayouts = []string{UsageDateLayout, "2006/01/02"}

// ParseStoredUsageDate parses a usage date read back from the ledger
func ParseStoredUsageDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range storedUsageDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("stored usage date %q: %w", raw, ErrInvalidUsageDate)
}

// ParseUsageDate accepts real calendar dates in YYYY-MM-DD form
func ParseUsageDate(raw string) (time.Time, error) {
	t, err := time.Parse(UsageDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse usage date %q: %w", raw, err)
	}
	return t, nil
}
