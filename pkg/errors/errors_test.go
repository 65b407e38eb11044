package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDownloadFailed, cause, "stream interrupted")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeDownloadFailed {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeStateConflict, "upload already started")
	wrapped := fmt.Errorf("toggling platform: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeStateConflict {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", meta.HTTPStatus)
	}
}

func TestLedgerWriteNeverExposesDetails(t *testing.T) {
	meta := MetadataFor(CodeLedgerWrite)
	if meta.DetailsAllowed {
		t.Fatal("ledger write failures must not leak details to callers")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeUploadFailed, stdErrors.New("http 500"), "publish to youtube")
	d := Dump(err)
	if d.Code != CodeUploadFailed {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
}
