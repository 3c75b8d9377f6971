// Package session implements the inquiry state machine shared by the CLI,
// the HTTP API and the MCP server.
//
//	Form --Submit--> Loading --ok/fail--> Result --Reset--> Form
//	                 Loading --Cancel---> Form
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/inquiry"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/validate"
)

type State string

const (
	StateForm    State = "form"
	StateLoading State = "loading"
	StateResult  State = "result"
)

// User-facing messages for terminal outcomes.
const (
	MsgRetryLater = "Failed to check the account. Please try again later."
	MsgNotFound   = "No account is registered under this number."
)

var (
	ErrEmptyInput = errors.New("account number is empty")
	ErrBusy       = errors.New("an inquiry is already in progress")
	ErrIncognito  = errors.New("favorites cannot be saved in incognito mode")
	ErrNoResult   = errors.New("no successful result to save")
)

// Checker performs the network inquiry.
type Checker interface {
	CheckBank(ctx context.Context, number, bankCode string) (inquiry.Result, error)
	CheckEwallet(ctx context.Context, number, ewalletCode string) (inquiry.Result, error)
}

// Persister records completed inquiries.
type Persister interface {
	AppendHistory(e history.Entry) error
	AddRecent(number string) error
	AddFavorite(f history.Favorite) (history.Favorite, error)
}

// Request is one submission from the form.
type Request struct {
	AccountType  provider.Type `json:"account_type"`
	ProviderCode string        `json:"provider_code"`
	Number       string        `json:"number"`
	// Incognito suppresses history writes for this request only.
	Incognito bool `json:"incognito,omitempty"`
}

// Outcome is the observable session state after a transition.
type Outcome struct {
	State   State           `json:"state"`
	Request Request         `json:"request"`
	Result  *inquiry.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Notice  string          `json:"notice,omitempty"`
	// Cause is the underlying failure behind Error.
	Cause error `json:"-"`
}

// Session holds the state of one user's form. It is safe for concurrent use;
// at most one inquiry is in flight at a time.
type Session struct {
	checker Checker
	store   Persister
	catalog provider.Catalog
	now     func() time.Time

	mu        sync.Mutex
	state     State
	last      Outcome
	incognito bool
	cancel    context.CancelFunc
	seq       uint64
}

// New creates a Session in the Form state.
func New(checker Checker, store Persister, catalog provider.Catalog) *Session {
	return &Session{
		checker: checker,
		store:   store,
		catalog: catalog,
		now:     time.Now,
		state:   StateForm,
		last:    Outcome{State: StateForm},
	}
}

// Catalog returns the provider catalog the session validates against.
func (s *Session) Catalog() provider.Catalog { return s.catalog }

// Submit validates req and runs the inquiry. Rejected input returns an error
// and leaves the state untouched. Inquiry failures are not errors: they land
// in the Result state with Outcome.Error set. Submit returns context.Canceled
// when the inquiry was cancelled before it finished.
func (s *Session) Submit(ctx context.Context, req Request) (Outcome, error) {
	v := validate.Validate(req.Number, req.AccountType)
	if v.Cleaned == "" {
		return Outcome{}, ErrEmptyInput
	}
	if err := v.Err(req.AccountType); err != nil {
		return Outcome{}, err
	}
	if _, err := s.catalog.Require(req.AccountType, req.ProviderCode); err != nil {
		return Outcome{}, err
	}
	req.Number = v.Cleaned

	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.state = StateLoading
	s.last = Outcome{State: StateLoading, Request: req}
	incognito := s.incognito || req.Incognito
	s.mu.Unlock()
	defer cancel()

	res, err := s.check(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		// Cancelled or reset while in flight.
		return Outcome{State: s.state}, context.Canceled
	}
	s.cancel = nil

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.state = StateForm
		s.last = Outcome{State: StateForm}
		return s.last, ctxErr
	}

	if err != nil {
		slog.Warn("inquiry failed", "provider", req.ProviderCode, "error", err)
		s.state = StateResult
		s.last = Outcome{State: StateResult, Request: req, Error: MsgRetryLater, Cause: err}
		return s.last, nil
	}

	out := Outcome{State: StateResult, Request: req, Result: &res}
	if !res.Success {
		out.Notice = MsgNotFound
	}
	if !incognito {
		s.record(req, res)
	}
	s.state = StateResult
	s.last = out
	return out, nil
}

func (s *Session) check(ctx context.Context, req Request) (inquiry.Result, error) {
	if req.AccountType == provider.Ewallet {
		return s.checker.CheckEwallet(ctx, req.Number, req.ProviderCode)
	}
	return s.checker.CheckBank(ctx, req.Number, req.ProviderCode)
}

// record persists a completed inquiry. Failures are logged, not surfaced:
// the user still sees the result.
func (s *Session) record(req Request, res inquiry.Result) {
	entry := history.Entry{
		Timestamp:    s.now().UnixMilli(),
		AccountType:  req.AccountType,
		ProviderCode: req.ProviderCode,
		RawNumber:    req.Number,
		Result:       res,
	}
	if err := s.store.AppendHistory(entry); err != nil {
		slog.Warn("saving history entry", "error", err)
	}
	if err := s.store.AddRecent(req.Number); err != nil {
		slog.Warn("saving recent search", "error", err)
	}
}

// Cancel aborts an outstanding inquiry and returns to Form. It is a no-op
// outside the Loading state.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		s.abortLocked()
	}
}

// Reset returns to Form, cancelling any outstanding inquiry.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
}

func (s *Session) abortLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	s.state = StateForm
	s.last = Outcome{State: StateForm}
}

// SetIncognito toggles the session-wide incognito flag. It is never persisted.
func (s *Session) SetIncognito(on bool) {
	s.mu.Lock()
	s.incognito = on
	s.mu.Unlock()
}

func (s *Session) Incognito() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incognito
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns the most recent transition result.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SaveFavorite stores the current successful result under label.
func (s *Session) SaveFavorite(label string) (history.Favorite, error) {
	s.mu.Lock()
	last, incognito := s.last, s.incognito || s.last.Request.Incognito
	s.mu.Unlock()

	if incognito {
		return history.Favorite{}, ErrIncognito
	}
	if last.State != StateResult || last.Result == nil || !last.Result.Success {
		return history.Favorite{}, ErrNoResult
	}

	fav, err := s.store.AddFavorite(history.Favorite{
		Label:              label,
		AccountType:        last.Request.AccountType,
		ProviderCode:       last.Request.ProviderCode,
		RawNumber:          last.Request.Number,
		HolderNameSnapshot: last.Result.HolderName,
	})
	if err != nil {
		return history.Favorite{}, fmt.Errorf("saving favorite: %w", err)
	}
	return fav, nil
}
