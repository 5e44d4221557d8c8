package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeNotFound, http.StatusNotFound, false},
		{CodeConflict, http.StatusConflict, false},
		{CodeInternal, http.StatusInternalServerError, true},
		{CodeDependency, http.StatusServiceUnavailable, true},
		{Code("BOGUS"), http.StatusInternalServerError, true},
	}

	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.code, meta.HTTPStatus, tc.status)
		}
		if meta.Retryable != tc.retryable {
			t.Errorf("%s: retryable = %t, want %t", tc.code, meta.Retryable, tc.retryable)
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "applying credit")

	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped error should match its cause")
	}
	if got := err.Error(); got != "DEPENDENCY_ERROR: applying credit" {
		t.Fatalf("unexpected error string: %s", got)
	}
}

func TestAs(t *testing.T) {
	inner := New(CodeValidation, "missing user id")
	wrapped := fmt.Errorf("handler: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error through wrapping")
	}
	if typed.Code() != CodeValidation {
		t.Fatalf("code = %s, want %s", typed.Code(), CodeValidation)
	}

	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain error should not convert")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	if IsRetryable(New(CodeValidation, "bad input")) {
		t.Fatal("validation errors must not retry")
	}
	if !IsRetryable(New(CodeDependency, "ledger unavailable")) {
		t.Fatal("dependency errors must retry")
	}
	if !IsRetryable(stdErrors.New("unknown")) {
		t.Fatal("unclassified errors default to retryable")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed").WithDetails(map[string]string{"offering_id": "is unknown"})
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details["offering_id"] != "is unknown" {
		t.Fatalf("details lost: %v", details)
	}
}

func TestDump(t *testing.T) {
	cause := stdErrors.New("pq timeout")
	err := Wrap(CodeDependency, cause, "ledger write")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("code = %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(d.Chain))
	}
	if d.TopMessage == "" {
		t.Fatal("top message missing")
	}
}
