package prism

import (
	"bytes"
	"net/http"
)

// responseSaver is an http.ResponseWriter that captures the handler's
// response instead of sending it, so the middleware can parse, cache
// and project the body before anything reaches the client.
type responseSaver struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseSaver() *responseSaver {
	return &responseSaver{header: make(http.Header)}
}

func (rs *responseSaver) Header() http.Header {
	return rs.header
}

func (rs *responseSaver) WriteHeader(statusCode int) {
	if rs.wroteHeader {
		return
	}
	rs.wroteHeader = true
	rs.status = statusCode
}

func (rs *responseSaver) Write(b []byte) (int, error) {
	if !rs.wroteHeader {
		rs.WriteHeader(http.StatusOK)
	}
	return rs.body.Write(b)
}

// StatusCode returns the recorded status, defaulting to 200 when the
// handler wrote a body without an explicit WriteHeader.
func (rs *responseSaver) StatusCode() int {
	if !rs.wroteHeader {
		return http.StatusOK
	}
	return rs.status
}

// Body returns the captured response body.
func (rs *responseSaver) Body() []byte {
	return rs.body.Bytes()
}

// replay writes the captured response to w unchanged. Used when the
// response is not eligible for projection (non-2xx, unsupported
// content type, unparseable body).
func (rs *responseSaver) replay(w http.ResponseWriter) {
	copyHeader(w.Header(), rs.header)
	w.WriteHeader(rs.StatusCode())
	w.Write(rs.body.Bytes())
}

// statusRecorder passes everything through to the underlying writer
// while remembering the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(statusCode int) {
	if sr.status == 0 {
		sr.status = statusCode
	}
	sr.ResponseWriter.WriteHeader(statusCode)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// StatusCode returns the recorded status, defaulting to 200.
func (sr *statusRecorder) StatusCode() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
