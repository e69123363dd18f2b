package handler

import "net/http"

type htmlResponse struct {
	status int
	body   string
}

func (h htmlResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(h.status)
	_, err := w.Write([]byte(h.body))
	return err
}

// HTMLOption configures an HTML response.
type HTMLOption func(*htmlResponse)

// WithHTMLStatus sets a custom HTTP status code.
func WithHTMLStatus(status int) HTMLOption {
	return func(r *htmlResponse) {
		r.status = status
	}
}

// HTML creates a text/html response. The caller is responsible for escaping
// any user-supplied content in the body.
func HTML(body string, opts ...HTMLOption) Response {
	r := &htmlResponse{
		status: http.StatusOK,
		body:   body,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
