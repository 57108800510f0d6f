package dispatch

import (
	"io"
	"net/http"
	"strconv"
)

// hopHeaders are managed by net/http and never copied from a response.
var hopHeaders = map[string]struct{}{
	"Connection":        {},
	"Content-Length":    {},
	"Transfer-Encoding": {},
	"Trailer":           {},
}

// writeResponse copies resp to w and closes its body.
func writeResponse(w http.ResponseWriter, resp *http.Response) error {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	h := w.Header()
	for k, vs := range resp.Header {
		if _, skip := hopHeaders[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil || resp.ContentLength == 0 {
		return nil
	}
	_, err := io.Copy(w, resp.Body)
	return err
}
