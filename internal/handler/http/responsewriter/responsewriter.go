// Package responsewriter wraps http.ResponseWriter so middleware can observe
// the status code and body size after the handler runs.
package responsewriter

import "net/http"

// ResponseWriter records what the handler wrote. The status defaults to 200
// when the handler writes a body without calling WriteHeader, matching
// net/http behavior. Duplicate WriteHeader calls are dropped.
type ResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	started bool
}

func Wrap(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *ResponseWriter) WriteHeader(statusCode int) {
	if w.started {
		return
	}
	w.started = true
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.started {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// StatusCode returns the status the handler responded with.
func (w *ResponseWriter) StatusCode() int { return w.status }

// BytesWritten returns the body size in bytes.
func (w *ResponseWriter) BytesWritten() int { return w.bytes }

// Unwrap exposes the wrapped writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
