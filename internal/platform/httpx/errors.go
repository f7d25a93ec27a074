// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/toolroom-erp/toolroom/internal/shared"
)

// RespondError maps workflow error kinds to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	detail := shared.UserSafeMessage(err)
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		ProblemKind(w, http.StatusNotFound, "Not Found", shared.KindNotFound, detail)
	case shared.KindInvalidState:
		ProblemKind(w, http.StatusConflict, "Invalid State", shared.KindInvalidState, detail)
	case shared.KindForbidden:
		ProblemKind(w, http.StatusForbidden, "Forbidden", shared.KindForbidden, detail)
	case shared.KindValidationFailed:
		ProblemKind(w, http.StatusUnprocessableEntity, "Validation Failed", shared.KindValidationFailed, detail)
	case shared.KindInsufficientStock:
		ProblemKind(w, http.StatusConflict, "Insufficient Stock", shared.KindInsufficientStock, detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
