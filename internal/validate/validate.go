// Package validate normalizes account and phone numbers typed by the user
// and checks them against the rules of the selected provider type.
package validate

import (
	"fmt"
	"strings"

	"github.com/kalambet/cekrek/internal/provider"
)

const (
	EwalletMinDigits = 10
	EwalletMaxDigits = 13
	BankMinDigits    = 10
	BankMaxDigits    = 20
)

// Reason identifies why a number was rejected.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTooShort  Reason = "too_short"
	ReasonTooLong   Reason = "too_long"
	ReasonBadPrefix Reason = "bad_prefix"
)

var ewalletPrefixes = []string{"08", "628"}

// Result is the outcome of Validate.
type Result struct {
	Cleaned string `json:"cleaned"`
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
}

// Error is the ValidationError form of a rejected Result.
type Error struct {
	Type    provider.Type
	Reason  Reason
	Cleaned string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s number %q: %s", e.Type, e.Cleaned, Message(e.Type, e.Reason))
}

// Err returns r as an *Error, or nil when r is valid.
func (r Result) Err(t provider.Type) error {
	if r.Valid {
		return nil
	}
	return &Error{Type: t, Reason: r.Reason, Cleaned: r.Cleaned}
}

// Clean strips every non-digit character.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate cleans raw and checks it against the rules for t. Empty input is
// reported as valid so callers do not flag an error before anything is typed;
// callers that submit must check Cleaned separately.
func Validate(raw string, t provider.Type) Result {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Result{Cleaned: cleaned, Valid: true}
	}

	reason := check(cleaned, t)
	return Result{Cleaned: cleaned, Valid: reason == ReasonNone, Reason: reason}
}

func check(cleaned string, t provider.Type) Reason {
	n := len(cleaned)
	if t == provider.Ewallet {
		switch {
		case n < EwalletMinDigits:
			return ReasonTooShort
		case n > EwalletMaxDigits:
			return ReasonTooLong
		case !hasAnyPrefix(cleaned, ewalletPrefixes):
			return ReasonBadPrefix
		}
		return ReasonNone
	}

	switch {
	case n < BankMinDigits:
		return ReasonTooShort
	case n > BankMaxDigits:
		return ReasonTooLong
	}
	return ReasonNone
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Message returns the user-facing text for a rejection reason.
func Message(t provider.Type, r Reason) string {
	switch r {
	case ReasonTooShort:
		if t == provider.Ewallet {
			return fmt.Sprintf("phone number must be at least %d digits", EwalletMinDigits)
		}
		return fmt.Sprintf("account number must be at least %d digits", BankMinDigits)
	case ReasonTooLong:
		if t == provider.Ewallet {
			return fmt.Sprintf("phone number must be at most %d digits", EwalletMaxDigits)
		}
		return fmt.Sprintf("account number must be at most %d digits", BankMaxDigits)
	case ReasonBadPrefix:
		return "phone number must start with 08 or 628"
	default:
		return ""
	}
}
