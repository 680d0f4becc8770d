package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeOutOfStock, status: http.StatusUnprocessableEntity, publicMsg: "product out of stock", detailsOK: true},
		{code: CodeMissingIdentity, status: http.StatusBadRequest, publicMsg: "user or session identity required"},
		{code: CodeTxConflict, status: http.StatusConflict, publicMsg: "concurrent update, please retry", retryable: true},
		{code: CodePersistence, status: http.StatusServiceUnavailable, publicMsg: "storage unavailable", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeRateLimit, "slow down"))
	if got := As(err); got == nil || got.Code() != CodeRateLimit {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrapping(t *testing.T) {
	typed := New(CodeOutOfStock, "sold out")
	wrapped := fmt.Errorf("add item: %w", typed)

	if !IsCode(wrapped, CodeOutOfStock) {
		t.Fatalf("expected wrapped error to carry %s", CodeOutOfStock)
	}
	if IsCode(wrapped, CodeNotFound) {
		t.Fatalf("unexpected match for %s", CodeNotFound)
	}
	if IsCode(stdErrors.New("plain"), CodeOutOfStock) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestRetryableFollowsMetadata(t *testing.T) {
	if !New(CodeTxConflict, "busy").Retryable() {
		t.Fatalf("transaction conflicts should be retryable")
	}
	if New(CodeOutOfStock, "gone").Retryable() {
		t.Fatalf("out of stock should not be retryable")
	}
	var nilErr *Error
	if !nilErr.Retryable() {
		t.Fatalf("nil error reads as internal, which is retryable")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(CodeOutOfStock, "%s is out of stock", "Mug")
	if err.Message() != "Mug is out of stock" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestDumpCapturesPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_carts_active_session", TableName: "carts", Message: "duplicate key"}
	err := Wrap(CodePersistence, fmt.Errorf("insert cart: %w", pgErr), "locate cart")

	d := Dump(err)
	if d.Code != CodePersistence {
		t.Fatalf("expected code %s, got %s", CodePersistence, d.Code)
	}
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "ux_carts_active_session" {
		t.Fatalf("unexpected pg fields: %+v", d.PG)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}

	fields := d.Fields()
	if fields["pg_table"] != "carts" || fields["error_code"] != CodePersistence {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg fields must be omitted")
	}
}

func TestDumpWithoutPostgres(t *testing.T) {
	d := Dump(stdErrors.New("plain"))
	if d.PG != nil || d.Code != "" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if _, ok := d.Fields()["error_chain"]; ok {
		t.Fatalf("single-entry chains are not logged")
	}
}
