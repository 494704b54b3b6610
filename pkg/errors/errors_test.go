package errors_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	rerrors "github.com/saveenergy/sockreport/pkg/errors"
)

func TestReportErrorMessage(t *testing.T) {
	err := rerrors.ErrReportUnreadable("/data/sockperf_pingpong_udp.txt", fs.ErrPermission)
	want := "REPORT_UNREADABLE: cannot read report (/data/sockperf_pingpong_udp.txt): permission denied"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatal("expected Unwrap to expose the cause")
	}

	plain := rerrors.ErrInvalidSuite("suite has no tests", nil)
	if plain.Error() != "INVALID_SUITE: suite has no tests" {
		t.Fatalf("Error() = %q", plain.Error())
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("render summary: %w", rerrors.ErrRenderFailed("encode png", errors.New("short write")))
	if !rerrors.HasCode(err, rerrors.ErrCodeRenderFailed) {
		t.Fatal("expected wrapped code to be found")
	}
	if rerrors.HasCode(err, rerrors.ErrCodeArchiveFailed) {
		t.Fatal("unexpected code match")
	}
	if rerrors.HasCode(errors.New("plain"), rerrors.ErrCodeRenderFailed) {
		t.Fatal("plain error has no code")
	}
}

func TestIsContextError(t *testing.T) {
	if !rerrors.IsContextError(rerrors.ErrCancelled(context.Canceled)) {
		t.Fatal("cancelled error should be a context error")
	}
	if !rerrors.IsContextError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)) {
		t.Fatal("deadline should be a context error")
	}
	if rerrors.IsContextError(errors.New("other")) {
		t.Fatal("unexpected context error")
	}
}
