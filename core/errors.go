package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	WalletErrorBadInput          = "WALLET_BAD_INPUT"
	WalletErrorSourceNotFound    = "WALLET_SOURCE_NOT_FOUND"
	WalletErrorConnectFailed     = "WALLET_CONNECT_FAILED"
	WalletErrorPersistenceFailed = "WALLET_PERSISTENCE_FAILED"
	WalletErrorStaleResult       = "WALLET_STALE_RESULT"
	WalletErrorClosed            = "WALLET_SERVICE_CLOSED"
	WalletErrorInternal          = "WALLET_INTERNAL_ERROR"
)

var (
	ErrMalformedKey      = errors.New("core: malformed public key")
	ErrSourceNotFound    = errors.New("core: source not found")
	ErrDetectorExists    = errors.New("core: detector already registered")
	ErrStoreClosed       = errors.New("core: identity store closed")
	ErrStaleResult       = errors.New("core: stale reconnect result")
	ErrHandleUnavailable = errors.New("core: source handle not available")
)

func walletErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureWalletErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrMalformedKey):
		return newWalletError(err.Error(), goerrors.CategoryBadInput, WalletErrorBadInput)
	case errors.Is(err, ErrSourceNotFound), errors.Is(err, ErrHandleUnavailable):
		return newWalletError(err.Error(), goerrors.CategoryNotFound, WalletErrorSourceNotFound)
	case errors.Is(err, ErrDetectorExists):
		return newWalletError(err.Error(), goerrors.CategoryConflict, WalletErrorBadInput)
	case errors.Is(err, ErrStaleResult):
		return newWalletError(err.Error(), goerrors.CategoryConflict, WalletErrorStaleResult)
	case errors.Is(err, ErrStoreClosed):
		return newWalletError(err.Error(), goerrors.CategoryOperation, WalletErrorClosed)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "connect") && (strings.Contains(msg, "rejected") || strings.Contains(msg, "failed")):
		return newWalletError(err.Error(), goerrors.CategoryExternal, WalletErrorConnectFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newWalletError(err.Error(), goerrors.CategoryBadInput, WalletErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureWalletErrorEnvelope(mapped)
}

func connectFailure(source SourceID, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryExternal, "core: silent reconnect failed").
		WithTextCode(WalletErrorConnectFailed).
		WithSeverity(goerrors.SeverityWarning).
		WithMetadata(map[string]any{"source": source.String()})
}

func persistenceFailure(operation string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryOperation, "core: identity persistence "+operation+" failed").
		WithTextCode(WalletErrorPersistenceFailed).
		WithSeverity(goerrors.SeverityWarning)
}

func newWalletError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureWalletErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureWalletErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = walletHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultWalletTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultWalletTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return WalletErrorBadInput
	case goerrors.CategoryNotFound:
		return WalletErrorSourceNotFound
	case goerrors.CategoryExternal:
		return WalletErrorConnectFailed
	case goerrors.CategoryConflict:
		return WalletErrorStaleResult
	default:
		return WalletErrorInternal
	}
}

func walletHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
