package httpx

import (
	"net/http"
	"strconv"

	"github.com/toolroom-erp/toolroom/internal/shared"
)

// PageParams reads page and per_page query parameters; invalid values fall back to defaults.
func PageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage > 500 {
		perPage = 500
	}
	return page, perPage
}

// List is the envelope for paginated collection responses.
type List[T any] struct {
	Data       []T               `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

// JSONPage slices items per request pagination and writes the envelope.
func JSONPage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, perPage := PageParams(r)
	data, p := shared.Page(items, page, perPage)
	if data == nil {
		data = []T{}
	}
	JSON(w, http.StatusOK, List[T]{Data: data, Pagination: p})
}
