package retry_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"stacks/internal/credential"
	"stacks/internal/retry"
	"stacks/internal/services"
	"stacks/internal/upstream"
)

type stubProvider struct {
	current   credential.Token
	refreshed credential.Token
	refreshes int
	err       error
}

func (p *stubProvider) Current(context.Context) (credential.Token, error) {
	return p.current, nil
}

func (p *stubProvider) Refresh(context.Context) (credential.Token, error) {
	p.refreshes++
	if p.err != nil {
		return "", p.err
	}
	return p.refreshed, nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type payload struct {
	Value string
}

// scripted returns outcomes in order and records the token used for each call.
type scripted struct {
	outcomes []upstream.Outcome[payload]
	tokens   []credential.Token
}

func (s *scripted) call(_ context.Context, token credential.Token) upstream.Outcome[payload] {
	s.tokens = append(s.tokens, token)
	idx := len(s.tokens) - 1
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	return s.outcomes[idx]
}

func success(value string) upstream.Outcome[payload] {
	return upstream.Outcome[payload]{Operation: "ProductDetail", Kind: upstream.KindSuccess, Payload: &payload{Value: value}}
}

func httpFailure(status int) upstream.Outcome[payload] {
	return upstream.Outcome[payload]{Operation: "ProductDetail", Kind: upstream.KindHTTPError, StatusCode: status}
}

func newClient(provider credential.Provider, sleeper *recordingSleeper) *retry.Client {
	return retry.New(provider, retry.DefaultPolicy(), retry.WithSleeper(sleeper.sleep))
}

func TestCallFirstTrySuccess(t *testing.T) {
	sleeper := &recordingSleeper{}
	script := &scripted{outcomes: []upstream.Outcome[payload]{success("ok")}}
	client := newClient(&stubProvider{}, sleeper)

	result, session, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Bucket != "first_try" || result.Attempts != 1 || result.Outcome.Payload.Value != "ok" {
		t.Fatalf("unexpected result %+v", result)
	}
	if session.Token != "t1" || len(sleeper.delays) != 0 {
		t.Fatalf("unexpected session %+v or sleeps %v", session, sleeper.delays)
	}
}

func TestCallRetriesWithExponentialBackoff(t *testing.T) {
	sleeper := &recordingSleeper{}
	script := &scripted{outcomes: []upstream.Outcome[payload]{
		httpFailure(502),
		{Operation: "ProductDetail", Kind: upstream.KindProtocolErrorWithoutPayload, Errors: []upstream.ProtocolError{{Message: "internal"}}},
		success("third"),
	}}
	client := newClient(&stubProvider{}, sleeper)

	result, _, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Bucket != "retry_2" || result.Attempts != 3 {
		t.Fatalf("unexpected result bucket=%s attempts=%d", result.Bucket, result.Attempts)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if !reflect.DeepEqual(sleeper.delays, want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
}

func TestCallProtocolErrorWithPayloadIsNotRetried(t *testing.T) {
	sleeper := &recordingSleeper{}
	partial := upstream.Outcome[payload]{
		Operation: "ProductDetail",
		Kind:      upstream.KindProtocolErrorWithPayload,
		Errors:    []upstream.ProtocolError{{Message: "reviews unavailable", Path: []any{"customerReviewsTop"}}},
		Payload:   &payload{Value: "X"},
	}
	script := &scripted{outcomes: []upstream.Outcome[payload]{partial}}
	client := newClient(&stubProvider{}, sleeper)

	result, _, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !result.Outcome.Partial() || result.Bucket != "first_try" || len(script.tokens) != 1 {
		t.Fatalf("expected single partial call, got %+v (calls=%d)", result, len(script.tokens))
	}
}

func TestCallFreshCredentialAttemptSucceeds(t *testing.T) {
	sleeper := &recordingSleeper{}
	provider := &stubProvider{refreshed: "t2"}
	script := &scripted{outcomes: []upstream.Outcome[payload]{
		httpFailure(403), httpFailure(403), httpFailure(403), success("fresh"),
	}}
	client := newClient(provider, sleeper)

	result, session, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Bucket != "retry_3" || !result.Refreshed {
		t.Fatalf("unexpected result %+v", result)
	}
	if session.Token != "t2" || session.Refreshes != 1 {
		t.Fatalf("expected refreshed session, got %+v", session)
	}
	wantTokens := []credential.Token{"t1", "t1", "t1", "t2"}
	if !reflect.DeepEqual(script.tokens, wantTokens) {
		t.Fatalf("tokens = %v, want %v", script.tokens, wantTokens)
	}
	wantDelays := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if !reflect.DeepEqual(sleeper.delays, wantDelays) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, wantDelays)
	}
}

func TestCallExhaustion(t *testing.T) {
	sleeper := &recordingSleeper{}
	provider := &stubProvider{refreshed: "t1"}
	transport := upstream.Outcome[payload]{Operation: "ProductDetail", Kind: upstream.KindTransportError, Cause: errors.New("connection reset")}
	script := &scripted{outcomes: []upstream.Outcome[payload]{transport}}
	client := newClient(provider, sleeper)

	result, session, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !retry.IsExhausted(err) || !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected last outcome error to be wrapped, got %v", err)
	}
	if result.Bucket != "failed" || result.Attempts != 4 || len(script.tokens) != 4 {
		t.Fatalf("unexpected result %+v calls=%d", result, len(script.tokens))
	}
	if provider.refreshes != 1 || session.Refreshes != 1 {
		t.Fatalf("expected one refresh, provider=%d session=%d", provider.refreshes, session.Refreshes)
	}
}

func TestCallRefreshFailureStillMakesFinalAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	provider := &stubProvider{err: credential.ErrMissing}
	script := &scripted{outcomes: []upstream.Outcome[payload]{httpFailure(500), httpFailure(500), httpFailure(500), success("late")}}
	client := newClient(provider, sleeper)

	result, session, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Refreshed || session.Token != "t1" || session.Refreshes != 0 {
		t.Fatalf("expected original credential kept, got result=%+v session=%+v", result, session)
	}
	if result.Bucket != "retry_3" {
		t.Fatalf("unexpected bucket %s", result.Bucket)
	}
}

func TestCallWithoutFreshCredential(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Second}
	client := retry.New(&stubProvider{refreshed: "t2"}, policy, retry.WithSleeper(sleeper.sleep))
	script := &scripted{outcomes: []upstream.Outcome[payload]{httpFailure(503)}}

	result, session, err := retry.Call(context.Background(), client, retry.Session{Token: "t1"}, script.call)
	if !retry.IsExhausted(err) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if result.Attempts != 2 || session.Token != "t1" {
		t.Fatalf("unexpected result %+v session %+v", result, session)
	}
	if !reflect.DeepEqual(sleeper.delays, []time.Duration{time.Second}) {
		t.Fatalf("unexpected delays %v", sleeper.delays)
	}
}

func TestCallStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := &recordingSleeper{}
	client := newClient(&stubProvider{}, sleeper)
	calls := 0
	call := func(context.Context, credential.Token) upstream.Outcome[payload] {
		calls++
		cancel()
		return httpFailure(502)
	}

	_, _, err := retry.Call(ctx, client, retry.Session{Token: "t1"}, call)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if retry.IsExhausted(err) {
		t.Fatal("cancellation must not be reported as exhaustion")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
