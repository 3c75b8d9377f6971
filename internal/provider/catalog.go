package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCatalogUnavailable is returned when the provider list cannot be loaded.
	ErrCatalogUnavailable = errors.New("provider catalog unavailable")
	// ErrUnknownProvider is returned for a code that is not in the requested category.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Type is the account category a provider belongs to.
type Type string

const (
	Bank    Type = "bank"
	Ewallet Type = "ewallet"
)

// ParseType converts user input ("bank", "ewallet", "e-wallet") into a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bank":
		return Bank, nil
	case "ewallet", "e-wallet", "wallet":
		return Ewallet, nil
	default:
		return "", fmt.Errorf("invalid account type %q (want bank or ewallet)", s)
	}
}

// Entry is a single selectable bank or e-wallet.
type Entry struct {
	Code        string `json:"code" yaml:"code"`
	DisplayName string `json:"display_name" yaml:"name"`
}

// Catalog holds the selectable providers in display order.
type Catalog struct {
	Banks    []Entry `json:"banks" yaml:"banks"`
	Ewallets []Entry `json:"ewallets" yaml:"ewallets"`
}

// Loader produces a Catalog.
type Loader interface {
	Load(ctx context.Context) (Catalog, error)
}

// popularCodes lists the most used providers. Both the current codes and the
// legacy bank-list values are included so either catalog source works.
var popularCodes = map[string]bool{
	"bca": true, "mandiri": true, "bni": true, "bri": true, "cimb": true,
	"ovo": true, "dana": true, "gopay": true, "shopeepay": true, "linkaja": true,
	"bank_bca": true, "bank_mandiri": true, "bank_bni": true, "bank_bri": true, "bank_cimb": true,
	"wallet_ovo": true, "wallet_dana": true, "gopay_user": true, "wallet_shopeepay": true, "wallet_linkaja": true,
}

// Entries returns the providers of the given type.
func (c Catalog) Entries(t Type) []Entry {
	if t == Ewallet {
		return c.Ewallets
	}
	return c.Banks
}

// Lookup finds code within its category.
func (c Catalog) Lookup(t Type, code string) (Entry, bool) {
	for _, e := range c.Entries(t) {
		if e.Code == code {
			return e, true
		}
	}
	return Entry{}, false
}

// Require is Lookup returning ErrUnknownProvider when code is absent.
func (c Catalog) Require(t Type, code string) (Entry, error) {
	e, ok := c.Lookup(t, code)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s %q", ErrUnknownProvider, t, code)
	}
	return e, nil
}

// Popular returns the commonly used providers of type t, in catalog order.
func (c Catalog) Popular(t Type) []Entry {
	return c.Filter(t, "", true)
}

// Filter returns the providers of type t matching query as Search does,
// narrowed to popular ones when popularOnly is set.
func (c Catalog) Filter(t Type, query string, popularOnly bool) []Entry {
	var out []Entry
	for _, e := range c.Search(t, query) {
		if !popularOnly || popularCodes[e.Code] {
			out = append(out, e)
		}
	}
	return out
}

// Search returns providers of type t whose display name contains query,
// ignoring case. An empty query matches everything.
func (c Catalog) Search(t Type, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Entry
	for _, e := range c.Entries(t) {
		if strings.Contains(strings.ToLower(e.DisplayName), q) {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that every entry has a code and codes are unique per category.
func (c Catalog) Validate() error {
	for _, t := range []Type{Bank, Ewallet} {
		seen := make(map[string]bool)
		for i, e := range c.Entries(t) {
			if e.Code == "" {
				return fmt.Errorf("%s entry %d: empty code", t, i)
			}
			if seen[e.Code] {
				return fmt.Errorf("%s entry %d: duplicate code %q", t, i, e.Code)
			}
			seen[e.Code] = true
		}
	}
	return nil
}
