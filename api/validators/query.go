package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/pagination"
)

// ParsePage reads the limit and cursor query parameters of a history listing.
// A missing limit falls back to the default page size.
func ParsePage(r *http.Request) (pagination.Params, error) {
	query := r.URL.Query()
	params := pagination.Params{
		Limit:  pagination.DefaultLimit,
		Cursor: strings.TrimSpace(query.Get("cursor")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Params{}, fieldError("limit", "limit must be numeric")
		}
		if limit < 1 || limit > pagination.MaxLimit {
			return pagination.Params{}, fieldError("limit", "limit out of range").
				WithDetails(map[string]any{"field": "limit", "min": 1, "max": pagination.MaxLimit})
		}
		params.Limit = limit
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Params{}, fieldError("cursor", "invalid cursor")
	}
	return params, nil
}

// ParseQueryEnum parses an optional enum filter. The zero value is returned
// when the parameter is absent.
func ParseQueryEnum[T any](r *http.Request, key string, parse func(string) (T, error), message string) (T, error) {
	var zero T
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return zero, nil
	}
	value, err := parse(raw)
	if err != nil {
		return zero, fieldError(key, message)
	}
	return value, nil
}

func fieldError(field, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}
