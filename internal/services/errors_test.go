package services_test

import (
	"errors"
	"strings"
	"testing"

	"scholardigest/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrStorage, "ingest", "append", "write records", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ingest", "append", "write records"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "none"},
		{err: services.Wrap(services.ErrConfiguration, "fetch", "since", "bad timestamp", nil), want: "configuration"},
		{err: services.Wrap(services.ErrStorage, "scoring", "merge", "", errors.New("io")), want: "storage"},
		{err: services.Wrap(services.ErrExternalTool, "fetch", "gmail", "list", nil), want: "external"},
		{err: errors.New("plain"), want: "transient"},
	}
	for _, tt := range tests {
		if got := services.FailureKind(tt.err); got != tt.want {
			t.Fatalf("FailureKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
