// Package inquiry resolves bank account and e-wallet numbers to the
// registered holder name through the external check service.
package inquiry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kalambet/cekrek/internal/mirror"
)

const (
	BankPath    = "/api/check-rekening"
	EwalletPath = "/api/check-ewallet"
)

var (
	// ErrInquiryFailed matches any *FailedError.
	ErrInquiryFailed = errors.New("inquiry failed")
	// ErrMalformedResponse is returned when the response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// FailedError is returned when a mirror answered with a status that is
// neither 2xx nor a reason to try the next mirror.
type FailedError struct {
	Status int
	Body   string
}

func (e *FailedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inquiry failed: HTTP %d", e.Status)
	}
	return fmt.Sprintf("inquiry failed: HTTP %d: %s", e.Status, e.Body)
}

func (e *FailedError) Is(target error) bool { return target == ErrInquiryFailed }

// Doer sends a request through the mirror pool.
type Doer interface {
	Do(ctx context.Context, method, path string, body []byte) (*mirror.Response, error)
}

// Client performs account inquiries.
type Client struct {
	doer Doer
}

// New creates a Client sending requests through d.
func New(d Doer) *Client {
	return &Client{doer: d}
}

type bankRequest struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

type ewalletRequest struct {
	PhoneNumber string `json:"phone_number"`
	EwalletCode string `json:"ewallet_code"`
}

// CheckBank looks up the holder of a bank account.
func (c *Client) CheckBank(ctx context.Context, number, bankCode string) (Result, error) {
	return c.check(ctx, BankPath, bankRequest{AccountNumber: number, BankCode: bankCode}, Echo{Number: number, ProviderCode: bankCode})
}

// CheckEwallet looks up the holder of an e-wallet phone number.
func (c *Client) CheckEwallet(ctx context.Context, number, ewalletCode string) (Result, error) {
	return c.check(ctx, EwalletPath, ewalletRequest{PhoneNumber: number, EwalletCode: ewalletCode}, Echo{Number: number, ProviderCode: ewalletCode})
}

// CheckAccount dispatches on the shape of a legacy provider code.
func (c *Client) CheckAccount(ctx context.Context, number, code string) (Result, error) {
	if IsEwalletCode(code) {
		return c.CheckEwallet(ctx, number, code)
	}
	return c.CheckBank(ctx, number, code)
}

var ewalletCodePrefixes = []string{"wallet_", "gopay_", "grab_"}

// IsEwalletCode reports whether a legacy code names an e-wallet.
func IsEwalletCode(code string) bool {
	for _, p := range ewalletCodePrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

func (c *Client) check(ctx context.Context, path string, reqBody any, echo Echo) (Result, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.doer.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		// The last mirror answered, just with a 5xx: also an InquiryFailed.
		var se *mirror.StatusError
		if errors.As(err, &se) {
			return Result{}, fmt.Errorf("checking %s: %w: %w", echo.ProviderCode, ErrInquiryFailed, err)
		}
		return Result{}, fmt.Errorf("checking %s: %w", echo.ProviderCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &FailedError{Status: resp.StatusCode, Body: snippet(resp.Body)}
	}

	return Normalize(resp.Body, echo)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
