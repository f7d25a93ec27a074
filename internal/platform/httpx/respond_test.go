package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolroom-erp/toolroom/internal/shared"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{shared.NotFound("pr", "x"), http.StatusNotFound, "NotFound"},
		{shared.InvalidState("already awarded"), http.StatusConflict, "InvalidState"},
		{shared.Forbidden("nope"), http.StatusForbidden, "Forbidden"},
		{shared.Validation("qty"), http.StatusUnprocessableEntity, "ValidationFailed"},
		{shared.InsufficientStock("short"), http.StatusConflict, "InsufficientStock"},
		{errors.New("db down"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.kind, body.Kind)
	}
}

func TestJSONPageEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/suppliers?page=2&per_page=2", nil)
	rec := httptest.NewRecorder()

	JSONPage(rec, req, []string{"a", "b", "c"})

	require.Equal(t, http.StatusOK, rec.Code)
	var body List[string]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"c"}, body.Data)
	require.Equal(t, 2, body.Pagination.TotalPages)
}
