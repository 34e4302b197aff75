package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidEvent      = "RELAY_INVALID_EVENT"
	ErrorConfiguration     = "RELAY_CONFIGURATION_ERROR"
	ErrorRejected          = "RELAY_REJECTED"
	ErrorTransportFailure  = "RELAY_TRANSPORT_FAILURE"
	ErrorMalformedResponse = "RELAY_MALFORMED_RESPONSE"
	ErrorInternal          = "RELAY_INTERNAL_ERROR"
)

// ConfigurationError reports a missing or invalid process level setting. It
// is raised while building components, never per event.
func ConfigurationError(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration)
}

func wrapConfigurationError(err error, message string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == ErrorConfiguration {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration)
}

func invalidEventError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidEvent)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func invalidEventValidation(kind EventKind, source error) error {
	fields := []goerrors.FieldError{}
	var validationErrs validator.ValidationErrors
	if errors.As(source, &validationErrs) {
		for _, fieldErr := range validationErrs {
			fields = append(fields, goerrors.FieldError{
				Field:   strings.ToLower(fieldErr.Field()),
				Message: fmt.Sprintf("failed %q check", fieldErr.Tag()),
			})
		}
	}
	if len(fields) == 0 {
		fields = append(fields, goerrors.FieldError{Field: "uid", Message: source.Error()})
	}
	err := goerrors.NewValidation("core: user snapshot is invalid", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidEvent).
		WithSeverity(goerrors.SeverityError)
	err.WithMetadata(map[string]any{"event_kind": string(kind)})
	return err
}

func internalError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

// OutcomeError converts a failed delivery outcome into the error surfaced to
// the event source. It returns nil for delivered outcomes.
func OutcomeError(outcome DeliveryOutcome) error {
	switch outcome.Status {
	case DeliveryStatusDelivered:
		return nil
	case DeliveryStatusRejected:
		return goerrors.New(
			fmt.Sprintf("core: downstream rejected delivery with status %d", outcome.StatusCode),
			goerrors.CategoryExternal,
		).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorRejected).
			WithMetadata(map[string]any{"status_code": outcome.StatusCode})
	case DeliveryStatusMalformedResponse:
		message := fmt.Sprintf("core: downstream returned status %d with a malformed body", outcome.StatusCode)
		if outcome.Cause == nil {
			return goerrors.New(message, goerrors.CategoryExternal).
				WithCode(http.StatusBadGateway).
				WithTextCode(ErrorMalformedResponse).
				WithMetadata(map[string]any{"status_code": outcome.StatusCode})
		}
		return goerrors.Wrap(outcome.Cause, goerrors.CategoryExternal, message).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorMalformedResponse).
			WithMetadata(map[string]any{"status_code": outcome.StatusCode})
	case DeliveryStatusTransportFailure:
		code := http.StatusBadGateway
		message := "core: delivery transport failed"
		if outcome.Timeout {
			code = http.StatusGatewayTimeout
			message = "core: delivery timed out"
		}
		cause := outcome.Cause
		if cause == nil {
			cause = errors.New("transport failure")
		}
		return goerrors.Wrap(cause, goerrors.CategoryExternal, message).
			WithCode(code).
			WithTextCode(ErrorTransportFailure).
			WithMetadata(map[string]any{"timeout": outcome.Timeout})
	default:
		return goerrors.New(
			fmt.Sprintf("core: unknown delivery status %q", outcome.Status),
			goerrors.CategoryInternal,
		).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ErrorInternal)
	}
}

// TextCodeOf returns the relay text code carried by err, or "" when err is
// not a go-errors envelope.
func TextCodeOf(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

func IsTextCode(err error, code string) bool {
	return err != nil && TextCodeOf(err) == code
}

// relayErrorMapper normalizes build time errors into the relay envelope.
func relayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureRelayErrorEnvelope(rich)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorInvalidEvent
	case goerrors.CategoryValidation:
		return ErrorConfiguration
	case goerrors.CategoryExternal:
		return ErrorTransportFailure
	default:
		return ErrorInternal
	}
}

func relayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
