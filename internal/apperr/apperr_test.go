package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsKindSentinel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"validation", Validation("op", "bad split"), ErrValidation},
		{"invariant", Invariant("op", "sum %d", 3), ErrInvariant},
		{"conflict", Conflict("op", "pending"), ErrConflict},
		{"authorization", Authorization("op", "wrong member"), ErrAuthorization},
		{"not found", NotFound("op", "group"), ErrNotFound},
		{"transient", Transient("op", errors.New("dial tcp")), ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.want)
			}
			for _, other := range sentinels {
				if other != tt.want && errors.Is(wrapped, other) {
					t.Errorf("%v unexpectedly matches %v", wrapped, other)
				}
			}
		})
	}
}

func TestKindOfAndRetryable(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("list members: %w", Transient("storage.ListMembers", cause))

	if KindOf(err) != KindTransient {
		t.Errorf("KindOf = %v, want transient", KindOf(err))
	}
	if !Retryable(err) {
		t.Error("transient error should be retryable")
	}
	if !errors.Is(err, cause) {
		t.Error("transient error should unwrap to its cause")
	}
	if Retryable(Conflict("op", "x")) {
		t.Error("conflict should not be retryable")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error should be unknown kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("calculator.Aggregate", "split member %q not in group", "zoe")
	want := `calculator.Aggregate: split member "zoe" not in group`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	tr := Transient("sqlstore.ListMembers", errors.New("timeout"))
	if tr.Error() != "sqlstore.ListMembers: timeout" {
		t.Errorf("Error() = %q", tr.Error())
	}
}
