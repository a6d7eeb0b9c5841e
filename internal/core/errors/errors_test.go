package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "routine not found")
		if err.Error() != "[NOT_FOUND] routine not found" {
			t.Errorf("expected [NOT_FOUND] routine not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeCyclicCalls, "recursion"))
		if !IsCode(err, CodeCyclicCalls) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeValidationError, "bad operand"), CtxRoutine, "main")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxRoutine] != "main" {
			t.Errorf("expected routine context, got %v", de.Context)
		}

		plain := AddContext(errors.New("boom"), CtxPath, "a.json")
		if !IsCode(plain, CodeInternal) {
			t.Error("expected plain errors to be wrapped as INTERNAL_ERROR")
		}
	})

	t.Run("LocationRendering", func(t *testing.T) {
		err := New(CodeContractViolation, "nil operand")
		err = AddContext(err, CtxPath, "kernels.json")
		err = AddContext(err, "attempt", 2)
		err = AddContext(err, CtxRegion, "loop.body")
		err = AddContext(err, CtxRoutine, "saxpy")
		want := "[CONTRACT_VIOLATION] nil operand (routine=saxpy region=loop.body path=kernels.json attempt=2)"
		if err.Error() != want {
			t.Errorf("expected %s, got %s", want, err.Error())
		}
	})

	t.Run("CodeOf", func(t *testing.T) {
		if got := CodeOf(fmt.Errorf("load: %w", New(CodeNotFound, "no go.mod"))); got != CodeNotFound {
			t.Errorf("expected NOT_FOUND, got %s", got)
		}
		if got := CodeOf(errors.New("boom")); got != CodeInternal {
			t.Errorf("expected INTERNAL_ERROR for plain errors, got %s", got)
		}
	})

	t.Run("FromPanic", func(t *testing.T) {
		err := FromPanic("dag: builder is locked")
		if !IsCode(err, CodeContractViolation) {
			t.Errorf("expected CONTRACT_VIOLATION, got %v", err)
		}
		wrapped := FromPanic(errors.New("nil operand"))
		if !IsCode(wrapped, CodeContractViolation) || errors.Unwrap(wrapped) == nil {
			t.Errorf("expected wrapped contract violation, got %v", wrapped)
		}
	})
}
