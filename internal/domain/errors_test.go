package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := E(KindUpstream, "kis.holdings", cause)

	if !errors.Is(err, cause) {
		t.Error("Wrapped cause must be reachable via errors.Is")
	}
	if KindOf(err) != KindUpstream {
		t.Errorf("Expected upstream kind, got %s", KindOf(err))
	}
}

func TestKindOf_SurvivesFurtherWrapping(t *testing.T) {
	err := Errorf(KindAuth, "token.refresh", "invalid appkey")
	wrapped := fmt.Errorf("cycle failed: %w", err)

	if KindOf(wrapped) != KindAuth {
		t.Errorf("Kind must survive fmt.Errorf wrapping, got %s", KindOf(wrapped))
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if kind := KindOf(errors.New("plain")); kind != KindUnknown {
		t.Errorf("Expected unknown kind for a plain error, got %s", kind)
	}
	if kind := KindOf(nil); kind != KindUnknown {
		t.Errorf("Expected unknown kind for nil, got %s", kind)
	}
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := Errorf(KindParse, "kis.holdings", "hldg_qty %q", "abc")
	msg := err.Error()
	for _, want := range []string{"kis.holdings", "abc"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error message missing %q: %s", want, msg)
		}
	}
}
