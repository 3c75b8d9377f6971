package validate

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kalambet/cekrek/internal/provider"
)

func TestValidate_Examples(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		typ    provider.Type
		valid  bool
		reason Reason
	}{
		{"ewallet 12 digits", "081234567890", provider.Ewallet, true, ReasonNone},
		{"ewallet 628 prefix", "6281234567890", provider.Ewallet, true, ReasonNone},
		{"ewallet bad prefix", "0712345678", provider.Ewallet, false, ReasonBadPrefix},
		{"ewallet too short", "081234", provider.Ewallet, false, ReasonTooShort},
		{"ewallet too long", "08123456789012", provider.Ewallet, false, ReasonTooLong},
		{"ewallet formatted", "+62 812-3456-7890", provider.Ewallet, true, ReasonNone},
		{"bank 10 digits", "1234567890", provider.Bank, true, ReasonNone},
		{"bank too short", "123", provider.Bank, false, ReasonTooShort},
		{"bank too long", strings.Repeat("1", 21), provider.Bank, false, ReasonTooLong},
		{"bank no prefix rule", "9999999999", provider.Bank, true, ReasonNone},
		{"empty is neutral", "", provider.Bank, true, ReasonNone},
		{"letters only is neutral", "abc", provider.Ewallet, true, ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.raw, tt.typ)
			if r.Valid != tt.valid || r.Reason != tt.reason {
				t.Errorf("Validate(%q, %s) = %+v, want valid=%v reason=%q", tt.raw, tt.typ, r, tt.valid, tt.reason)
			}
		})
	}
}

func TestClean(t *testing.T) {
	if got := Clean(" 0812-3456 7890x"); got != "081234567890" {
		t.Errorf("Clean = %q, want 081234567890", got)
	}
}

func TestResultErr(t *testing.T) {
	r := Validate("081234", provider.Ewallet)
	err := r.Err(provider.Ewallet)

	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("Err() = %v, want *Error", err)
	}
	if ve.Reason != ReasonTooShort {
		t.Errorf("Reason = %q, want %q", ve.Reason, ReasonTooShort)
	}
	if Validate("1234567890", provider.Bank).Err(provider.Bank) != nil {
		t.Error("valid result returned non-nil error")
	}
}

func digits(min, max int) gopter.Gen {
	return gen.IntRange(min, max).FlatMap(func(v interface{}) gopter.Gen {
		return gen.SliceOfN(v.(int), gen.NumChar()).Map(func(r []rune) string { return string(r) })
	}, reflect.TypeOf(""))
}

func TestValidate_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ewallet accepts iff 10..13 digits with 08 or 628 prefix", prop.ForAll(
		func(s string) bool {
			r := Validate(s, provider.Ewallet)
			n := len(s)
			want := n == 0 || (n >= 10 && n <= 13 && (strings.HasPrefix(s, "08") || strings.HasPrefix(s, "628")))
			return r.Valid == want
		},
		gen.OneGenOf(
			digits(0, 16),
			digits(8, 11).Map(func(s string) string { return "08" + s }),
			digits(7, 10).Map(func(s string) string { return "628" + s }),
		),
	))

	properties.Property("bank accepts iff 10..20 digits", prop.ForAll(
		func(s string) bool {
			r := Validate(s, provider.Bank)
			n := len(s)
			return r.Valid == (n == 0 || (n >= 10 && n <= 20))
		},
		digits(0, 24),
	))

	properties.Property("cleaned value contains only digits", prop.ForAll(
		func(s string) bool {
			for _, c := range Validate(s, provider.Bank).Cleaned {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
