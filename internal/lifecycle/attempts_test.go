package lifecycle

import (
	"context"
	"errors"
	"testing"
)

func attempt(label string, v int, err error, calls *[]string) Attempt[int] {
	return Attempt[int]{Label: label, Run: func(context.Context) (int, error) {
		*calls = append(*calls, label)
		return v, err
	}}
}

func TestFirstSuccessStopsEarly(t *testing.T) {
	var calls []string
	v, label, err := FirstSuccess(context.Background(), []Attempt[int]{
		attempt("a", 0, errors.New("no"), &calls),
		attempt("b", 2, nil, &calls),
		attempt("c", 3, nil, &calls),
	})
	if err != nil || v != 2 || label != "b" {
		t.Fatalf("FirstSuccess = %d, %q, %v", v, label, err)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v", calls)
	}
}

func TestFirstSuccessAggregates(t *testing.T) {
	var calls []string
	_, _, err := FirstSuccess(context.Background(), []Attempt[int]{
		attempt("a", 0, errors.New("first"), &calls),
		attempt("b", 0, errors.New(""), &calls),
	})
	var agg *AttemptsError
	if !errors.As(err, &agg) {
		t.Fatalf("err = %v, want *AttemptsError", err)
	}
	want := "[a]\nfirst\n\n[b]\n(нет текста)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFirstSuccessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []string
	_, _, err := FirstSuccess(ctx, []Attempt[int]{attempt("a", 1, nil, &calls)})
	if err == nil || len(calls) != 0 {
		t.Fatalf("err = %v, calls = %v", err, calls)
	}
}
