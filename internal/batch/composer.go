package batch

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/google/uuid"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

const boundaryPrefix = "batchresponse_"

// Composer builds the multipart envelope returned for a batch.
type Composer struct {
	// MediaType of the envelope. Defaults to DefaultMediaType.
	MediaType string
}

// Compose writes one application/http part per response, in order, and
// returns a 200 envelope bound to req. Each response body is consumed and
// replaced with a buffered copy. When composition fails, the bodies not yet
// written are closed.
func (c *Composer) Compose(req *http.Request, responses []*http.Response) (*http.Response, error) {
	if req == nil {
		return nil, &domain.ArgumentError{Name: "req"}
	}
	if responses == nil {
		return nil, &domain.ArgumentError{Name: "responses"}
	}
	for i, resp := range responses {
		if resp == nil {
			return nil, &domain.ArgumentError{Name: fmt.Sprintf("responses[%d]", i)}
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(boundaryPrefix + uuid.NewString()); err != nil {
		closeBodies(responses)
		return nil, err
	}

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Type", mime.FormatMediaType(httpMessageMediaType, map[string]string{"msgtype": msgTypeResponse}))

	for i, resp := range responses {
		pw, err := mw.CreatePart(partHeader)
		if err != nil {
			closeBodies(responses[i:])
			return nil, err
		}
		if err := writeResponse(pw, resp); err != nil {
			closeBodies(responses[i+1:])
			return nil, fmt.Errorf("batch: write part %d: %w", i, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	mediaType := c.MediaType
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	envelope := domain.NewResponse(req, http.StatusOK, buf.Bytes())
	envelope.Header.Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"boundary": mw.Boundary()}))
	return envelope, nil
}

// writeResponse serializes resp as an HTTP/1.1 message with a fixed length.
func writeResponse(w io.Writer, resp *http.Response) error {
	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	out := *resp
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.TransferEncoding = nil
	out.Close = false
	if out.ProtoMajor == 0 {
		out.Proto, out.ProtoMajor, out.ProtoMinor = "HTTP/1.1", 1, 1
	}
	if out.Header == nil {
		out.Header = http.Header{}
	}
	return out.Write(w)
}

func closeBodies(responses []*http.Response) {
	for _, resp := range responses {
		if resp.Body != nil {
			resp.Body.Close()
		}
	}
}
