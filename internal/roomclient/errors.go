package roomclient

import (
	"errors"
	"fmt"

	"chiptally/internal/store"
)

var ErrSubscriptionFailed = errors.New("subscription_failed")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Code)
}

// Is lets callers match store sentinels by code.
func (e *APIError) Is(target error) bool {
	return codeError(e.Code) == target
}

func codeError(code string) error {
	switch code {
	case "invalid_path":
		return store.ErrInvalidPath
	case "invalid_value", "invalid_json":
		return store.ErrInvalidValue
	case "store_closed":
		return store.ErrClosed
	default:
		return nil
	}
}

func subscriptionError(code string) error {
	if err := codeError(code); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrSubscriptionFailed, code)
}
