package inquiry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Upstream display messages that get a friendlier rendering.
const (
	upstreamFound    = "ACCOUNT FOUND"
	upstreamNotFound = "ACCOUNT NOT FOUND"

	MessageFound    = "Account found"
	MessageNotFound = "Account not found"
)

// Result is the canonical outcome of one inquiry, whatever response shape
// produced it. HolderName is always empty when Success is false.
type Result struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	HolderName    string `json:"holder_name"`
	AccountNumber string `json:"account_number"`
	ProviderLabel string `json:"provider_label"`
}

// Echo is the request input reflected back when the response omits it.
type Echo struct {
	Number       string
	ProviderCode string
}

// envelope covers both protocol generations: the current {status: "success"}
// and the legacy {success: true}.
type envelope struct {
	Status  string          `json:"status"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) succeeded() bool {
	if e.Status != "" {
		return strings.EqualFold(e.Status, "success")
	}
	return e.Success != nil && *e.Success
}

// payload is the union of every data field the service is known to send.
type payload struct {
	AccountNumber string `json:"account_number"`
	PhoneNumber   string `json:"phone_number"`
	CustomerName  string `json:"customer_name"`
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code"`
	EwalletName   string `json:"ewallet_name"`
	EwalletCode   string `json:"ewallet_code"`
	AccountBank   string `json:"account_bank"`
}

// Field preference, first non-empty wins. Human-readable labels come before
// raw codes, and the request input is the last resort.
func (p payload) holder() string { return firstNonEmpty(p.CustomerName, p.AccountHolder) }

func (p payload) number(echo Echo) string {
	return firstNonEmpty(p.AccountNumber, p.PhoneNumber, echo.Number)
}

func (p payload) label(echo Echo) string {
	return firstNonEmpty(p.BankName, p.EwalletName, p.BankCode, p.EwalletCode, p.AccountBank, echo.ProviderCode)
}

// Normalize maps a raw response body onto Result. It returns
// ErrMalformedResponse when the body is not a JSON envelope, or when a
// successful envelope carries data that is not an object.
func Normalize(body []byte, echo Echo) (Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if !env.succeeded() {
		return Result{
			Success:       false,
			Message:       displayMessage(env.Message, MessageNotFound),
			AccountNumber: echo.Number,
			ProviderLabel: echo.ProviderCode,
		}, nil
	}

	var p payload
	if data := bytes.TrimSpace(env.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &p); err != nil {
			return Result{}, fmt.Errorf("%w: decoding data: %w", ErrMalformedResponse, err)
		}
	}

	return Result{
		Success:       true,
		Message:       displayMessage(env.Message, MessageFound),
		HolderName:    p.holder(),
		AccountNumber: p.number(echo),
		ProviderLabel: p.label(echo),
	}, nil
}

func displayMessage(msg, fallback string) string {
	switch strings.ToUpper(strings.TrimSpace(msg)) {
	case "":
		return fallback
	case upstreamFound:
		return MessageFound
	case upstreamNotFound:
		return MessageNotFound
	}
	return msg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
