package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectionError(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewConnectionError("dial", inner)

	if !IsRetriable(err) {
		t.Error("connection errors should be retriable")
	}
	if !errors.Is(err, inner) {
		t.Error("should unwrap to the underlying error")
	}
	if err.Error() != "dial: connection refused" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{Reason: "short level"}
	if IsRetriable(err) {
		t.Error("parse errors are not retriable")
	}

	inner := errors.New("invalid syntax")
	wrapped := &ParseError{Reason: "ask level 0 price", Err: inner}
	if !errors.Is(wrapped, inner) {
		t.Error("should unwrap to the underlying error")
	}
}

func TestIsRetriable_WrappedChain(t *testing.T) {
	err := fmt.Errorf("feed: %w", NewConnectionError("read", errors.New("broken pipe")))
	if !IsRetriable(err) {
		t.Error("retriability should survive wrapping")
	}

	if IsRetriable(errors.New("plain")) {
		t.Error("plain errors are not retriable")
	}
	if IsRetriable(ErrReconnectExhausted) {
		t.Error("the exhausted sentinel is terminal, not retriable")
	}
}
