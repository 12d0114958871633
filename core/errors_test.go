package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestWalletErrorMapper_AssignsStableCodes(t *testing.T) {
	cases := []struct {
		err      error
		code     string
		category goerrors.Category
		status   int
	}{
		{err: fmt.Errorf("%w: bad", ErrMalformedKey), code: WalletErrorBadInput, category: goerrors.CategoryBadInput, status: http.StatusBadRequest},
		{err: fmt.Errorf("%w: glow", ErrSourceNotFound), code: WalletErrorSourceNotFound, category: goerrors.CategoryNotFound, status: http.StatusNotFound},
		{err: ErrStoreClosed, code: WalletErrorClosed, category: goerrors.CategoryOperation, status: http.StatusInternalServerError},
		{err: ErrStaleResult, code: WalletErrorStaleResult, category: goerrors.CategoryConflict, status: http.StatusConflict},
		{err: errors.New("wallet connect rejected by user"), code: WalletErrorConnectFailed, category: goerrors.CategoryExternal, status: http.StatusBadGateway},
	}
	for _, tc := range cases {
		mapped := walletErrorMapper(tc.err)
		if mapped.TextCode != tc.code {
			t.Fatalf("%v: expected text code %q, got %q", tc.err, tc.code, mapped.TextCode)
		}
		if mapped.Category != tc.category {
			t.Fatalf("%v: expected category %q, got %q", tc.err, tc.category, mapped.Category)
		}
		if mapped.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, mapped.Code)
		}
	}
}

func TestWalletErrorMapper_KeepsRichErrors(t *testing.T) {
	failure := connectFailure(SourceTrust, errBoom)
	mapped := walletErrorMapper(failure)
	if mapped.TextCode != WalletErrorConnectFailed {
		t.Fatalf("expected connect failure code, got %q", mapped.TextCode)
	}
	if mapped.Metadata["source"] != "trust" {
		t.Fatalf("expected source metadata, got %v", mapped.Metadata)
	}
	if !errors.Is(mapped, errBoom) {
		t.Fatalf("expected cause to be preserved")
	}
	if walletErrorMapper(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
