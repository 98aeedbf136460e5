package odb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonasWeidner/oDB/lib/engine"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   error
		tag  ErrorTag
	}{
		{"key exists", fmt.Errorf("wrapped: %w", engine.ErrKeyExists), TagAlreadyExists},
		{"quota", fmt.Errorf("wrapped: %w", engine.ErrQuotaExceeded), TagQuotaExceeded},
		{"inactive txn", engine.ErrTxnInactive, TagTransactionError},
		{"aborted txn", fmt.Errorf("op: %w", engine.ErrTxnAborted), TagTransactionError},
		{"anything else", errors.New("disk fell off"), TagDatabaseError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := Normalize(tc.in)
			if e == nil {
				t.Fatal("expected non-nil normalized error")
			}
			if e.Tag != tc.tag {
				t.Errorf("expected tag %d, got %d", tc.tag, e.Tag)
			}
		})
	}

	if Normalize(nil) != nil {
		t.Error("expected nil to normalize to nil")
	}

	// an already-normalized error passes through unchanged
	orig := NewDatabaseError("database %q is not open", "x")
	if got := Normalize(fmt.Errorf("ctx: %w", orig)); got != orig {
		t.Errorf("expected passthrough, got %v", got)
	}
}

func TestErrorWireForm(t *testing.T) {
	tests := []struct {
		err  *Error
		wire string
	}{
		{NewAlreadyExists(), "ALREADY_EXISTS"},
		{NewQuotaExceeded(), "QUOTA_EXCEEDED"},
		{NewTransactionError("txn aborted"), "TRANSACTION_ERROR:txn aborted"},
		{NewDatabaseError("not open"), "DATABASE_ERROR:not open"},
	}

	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.wire {
			t.Errorf("expected wire form %q, got %q", tc.wire, got)
		}
		parsed := ParseError(tc.err.Error())
		if parsed.Tag != tc.err.Tag || parsed.Msg != tc.err.Msg {
			t.Errorf("round trip of %q yielded %+v", tc.wire, parsed)
		}
	}

	// unknown strings still land inside the taxonomy
	if e := ParseError("boom"); e.Tag != TagDatabaseError {
		t.Errorf("expected unknown wire string to parse as DatabaseError, got %+v", e)
	}

	// messages containing colons survive the round trip
	e := ParseError("DATABASE_ERROR:open /tmp/x: permission denied")
	if e.Tag != TagDatabaseError || e.Msg != "open /tmp/x: permission denied" {
		t.Errorf("unexpected parse result %+v", e)
	}
}

func TestErrorIsMatchesOnTag(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NewDatabaseError("a"))
	if !errors.Is(err, NewDatabaseError("b")) {
		t.Error("expected Is to match on the tag regardless of message")
	}
	if errors.Is(err, NewQuotaExceeded()) {
		t.Error("expected Is not to match across tags")
	}
}
