package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/inquiry"
	"github.com/kalambet/cekrek/internal/mirror"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/storage"
	"github.com/kalambet/cekrek/internal/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testCatalog = provider.Catalog{
	Banks:    []provider.Entry{{Code: "bca", DisplayName: "BCA"}, {Code: "bni", DisplayName: "BNI"}},
	Ewallets: []provider.Entry{{Code: "dana", DisplayName: "DANA"}},
}

type fakeChecker struct {
	mu     sync.Mutex
	calls  []string
	result inquiry.Result
	err    error
	// block, when set, holds the call until it is closed or ctx ends.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeChecker) do(ctx context.Context, kind, number, code string) (inquiry.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind+":"+code+":"+number)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return inquiry.Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeChecker) CheckBank(ctx context.Context, number, code string) (inquiry.Result, error) {
	return f.do(ctx, "bank", number, code)
}

func (f *fakeChecker) CheckEwallet(ctx context.Context, number, code string) (inquiry.Result, error) {
	return f.do(ctx, "ewallet", number, code)
}

func (f *fakeChecker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func found(name string) inquiry.Result {
	return inquiry.Result{Success: true, Message: inquiry.MessageFound, HolderName: name, AccountNumber: "1234567890", ProviderLabel: "bca"}
}

func newTestSession(t *testing.T, c Checker) (*Session, *history.Store, storage.KV) {
	t.Helper()
	kv := storage.NewMemoryStore()
	store := history.New(kv)
	return New(c, store, testCatalog), store, kv
}

func TestSubmit_SuccessRecordsHistory(t *testing.T) {
	checker := &fakeChecker{result: found("Jane Doe")}
	s, store, _ := newTestSession(t, checker)

	out, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234-5678 90"})
	require.NoError(t, err)

	assert.Equal(t, StateResult, out.State)
	require.NotNil(t, out.Result)
	assert.Equal(t, "Jane Doe", out.Result.HolderName)
	assert.Empty(t, out.Error)
	assert.Equal(t, "1234567890", out.Request.Number, "number is cleaned before the call")
	assert.Equal(t, []string{"bank:bca:1234567890"}, checker.Calls())

	h, _ := store.LoadHistory()
	require.Len(t, h, 1)
	assert.Equal(t, "1234567890", h[0].RawNumber)
	assert.Equal(t, provider.Bank, h[0].AccountType)
	r, _ := store.LoadRecents()
	assert.Equal(t, []string{"1234567890"}, r)

	assert.Equal(t, StateResult, s.State())
	s.Reset()
	assert.Equal(t, StateForm, s.State())
	assert.Nil(t, s.Outcome().Result)
}

func TestSubmit_EwalletDispatch(t *testing.T) {
	checker := &fakeChecker{result: found("Budi")}
	s, _, _ := newTestSession(t, checker)

	_, err := s.Submit(context.Background(), Request{AccountType: provider.Ewallet, ProviderCode: "dana", Number: "+62 812-3456-7890"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ewallet:dana:6281234567890"}, checker.Calls())
}

func TestSubmit_NotFoundIsRecordedWithNotice(t *testing.T) {
	checker := &fakeChecker{result: inquiry.Result{Success: false, Message: inquiry.MessageNotFound, AccountNumber: "1234567890", ProviderLabel: "bca"}}
	s, store, _ := newTestSession(t, checker)

	out, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
	require.NoError(t, err)
	assert.Equal(t, MsgNotFound, out.Notice)
	assert.Empty(t, out.Error)

	h, _ := store.LoadHistory()
	assert.Len(t, h, 1)
}

func TestSubmit_FailureSetsErrorAndSkipsHistory(t *testing.T) {
	cause := &mirror.ExhaustedError{Mirror: "https://b.example", Attempts: 2, Err: errors.New("connection refused")}
	checker := &fakeChecker{err: cause}
	s, store, _ := newTestSession(t, checker)

	out, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
	require.NoError(t, err)
	assert.Equal(t, StateResult, out.State)
	assert.Nil(t, out.Result)
	assert.Equal(t, MsgRetryLater, out.Error)
	assert.ErrorIs(t, out.Cause, mirror.ErrAllMirrorsExhausted)

	h, _ := store.LoadHistory()
	r, _ := store.LoadRecents()
	assert.Empty(t, h)
	assert.Empty(t, r)
}

func TestSubmit_RejectedInputDoesNotTransition(t *testing.T) {
	checker := &fakeChecker{result: found("x")}
	s, _, _ := newTestSession(t, checker)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty", Request{AccountType: provider.Bank, ProviderCode: "bca", Number: " - "}, ErrEmptyInput},
		{"unknown provider", Request{AccountType: provider.Bank, ProviderCode: "dana", Number: "1234567890"}, provider.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := s.Submit(context.Background(), Request{AccountType: provider.Ewallet, ProviderCode: "dana", Number: "0712345678"})
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validate.ReasonBadPrefix, verr.Reason)

	assert.Equal(t, StateForm, s.State())
	assert.Empty(t, checker.Calls())
}

func TestSubmit_IncognitoLeavesCollectionsUntouched(t *testing.T) {
	checker := &fakeChecker{result: found("Jane Doe")}
	s, store, kv := newTestSession(t, checker)

	require.NoError(t, store.AppendHistory(history.Entry{ProviderCode: "bni", RawNumber: "9999999999"}))
	require.NoError(t, store.AddRecent("9999999999"))
	beforeH, _, _ := kv.Get(history.KeyHistory)
	beforeR, _, _ := kv.Get(history.KeyRecents)

	s.SetIncognito(true)
	_, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
	require.NoError(t, err)

	s.SetIncognito(false)
	_, err = s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890", Incognito: true})
	require.NoError(t, err)

	afterH, _, _ := kv.Get(history.KeyHistory)
	afterR, _, _ := kv.Get(history.KeyRecents)
	assert.Equal(t, beforeH, afterH)
	assert.Equal(t, beforeR, afterR)

	_, err = s.SaveFavorite("Mom")
	assert.ErrorIs(t, err, ErrIncognito)
}

func TestSubmit_BusyWhileLoading(t *testing.T) {
	checker := &fakeChecker{result: found("Jane"), block: make(chan struct{}), started: make(chan struct{})}
	s, _, _ := newTestSession(t, checker)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
		done <- err
	}()
	<-checker.started
	assert.Equal(t, StateLoading, s.State())

	_, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bni", Number: "1234567890"})
	assert.ErrorIs(t, err, ErrBusy)

	close(checker.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateResult, s.State())
}

func TestCancel_ReturnsToFormWithoutPersisting(t *testing.T) {
	checker := &fakeChecker{result: found("Jane"), block: make(chan struct{}), started: make(chan struct{})}
	s, store, _ := newTestSession(t, checker)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
		done <- err
	}()
	<-checker.started
	s.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after Cancel")
	}
	assert.Equal(t, StateForm, s.State())
	h, _ := store.LoadHistory()
	assert.Empty(t, h)
}

func TestSubmit_CallerContextCancelled(t *testing.T) {
	checker := &fakeChecker{block: make(chan struct{}), started: make(chan struct{})}
	s, _, _ := newTestSession(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
		done <- err
	}()
	<-checker.started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateForm, s.State())
}

func TestSaveFavorite(t *testing.T) {
	checker := &fakeChecker{result: found("Jane Doe")}
	s, store, _ := newTestSession(t, checker)

	_, err := s.SaveFavorite("Rent")
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
	require.NoError(t, err)

	fav, err := s.SaveFavorite("Rent")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", fav.HolderNameSnapshot)
	assert.Equal(t, "1234567890", fav.RawNumber)

	_, err = s.SaveFavorite("")
	assert.ErrorIs(t, err, history.ErrEmptyLabel)

	favs, _ := store.LoadFavorites()
	assert.Len(t, favs, 1)
}

func TestSaveFavorite_NotFoundResultRejected(t *testing.T) {
	checker := &fakeChecker{result: inquiry.Result{Success: false}}
	s, _, _ := newTestSession(t, checker)

	_, err := s.Submit(context.Background(), Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"})
	require.NoError(t, err)

	_, err = s.SaveFavorite("Nope")
	assert.ErrorIs(t, err, ErrNoResult)
}
