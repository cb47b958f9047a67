package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("handler: %w", newError(KindUploadFailed, "files.upload", cause))

	if !errors.Is(err, ErrUploadFailed) {
		t.Error("expected errors.Is to match the kind")
	}
	if errors.Is(err, ErrDeleteFailed) {
		t.Error("expected a different kind not to match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to stay reachable")
	}
	if KindOf(err) != KindUploadFailed {
		t.Errorf("expected KindUploadFailed, got %v", KindOf(err))
	}
	if KindOf(cause) != 0 {
		t.Errorf("expected zero kind for a foreign error, got %v", KindOf(cause))
	}
	if got := newError(KindUserNotFound, "auth.sign_in", nil).Error(); got != "auth.sign_in: User not found" {
		t.Errorf("unexpected message %q", got)
	}
}
