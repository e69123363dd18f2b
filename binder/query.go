package binder

import "net/http"

// Query returns a binder that populates v from URL query parameters.
//
// Struct tags control the mapping:
//   - `query:"name"` binds to parameter "name"
//   - `query:"-"` skips the field
//
// Basic types, slices of basic types, and pointers for optional fields
// are supported. Untagged fields bind by lowercased field name.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrInvalidQuery)
	}
}
