package measurement

import (
	"facemeasure/pkg/response"
	"fmt"
	"net/http"
)

var (
	ErrMissingElement        = response.NewError(http.StatusUnprocessableEntity, "required page element is missing")
	ErrSessionNotFound       = response.NewError(http.StatusNotFound, "measurement session not found")
	ErrInvalidLifecycleState = response.NewError(http.StatusConflict, "invalid lifecycle state")
	ErrDisposedDuringStart   = response.NewError(http.StatusConflict, "session disposed during start")
	ErrEngineConstruction    = response.NewError(http.StatusInternalServerError, "failed to construct measurement engine")
	ErrFrameRelayUnsupported = response.NewError(http.StatusNotImplemented, "engine does not accept pushed frames")
	ErrBadMessage            = response.NewError(http.StatusBadRequest, "malformed page message")
	ErrInternalServerError   = response.NewError(http.StatusInternalServerError, "internal server error")
)

// MissingElementError names the required surface the page did not provide.
type MissingElementError struct {
	Role     string
	Selector string
}

func (e *MissingElementError) Error() string {
	return fmt.Sprintf("required element %s (%s) not found", e.Role, e.Selector)
}

func (e *MissingElementError) Is(target error) bool {
	return target == ErrMissingElement
}
