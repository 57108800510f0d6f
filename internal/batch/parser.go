package batch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

// DefaultMediaType is the envelope media type accepted when none is configured.
const DefaultMediaType = "multipart/mixed"

// Part media type of an embedded HTTP message.
const (
	httpMessageMediaType = "application/http"
	msgTypeRequest       = "request"
	msgTypeResponse      = "response"
)

// Envelope validation messages.
const (
	msgContentNull     = "The 'Content' property on the batch request cannot be null."
	msgContentTypeNull = "The batch request must have a \"Content-Type\" header."
	msgUnsupportedType = "The batch request of media type '%s' is not supported."
)

// Parser validates batch envelopes and decodes their sub-requests.
type Parser struct {
	// MediaTypes lists the accepted envelope media types. Matching is
	// case-insensitive and ignores parameters.
	MediaTypes []string
	// MaxParts rejects envelopes with more parts. Zero means unlimited.
	MaxParts int
}

// NewParser returns a parser accepting DefaultMediaType.
func NewParser() *Parser {
	return &Parser{MediaTypes: []string{DefaultMediaType}}
}

// Validate checks the envelope before any part is read. Failures are
// *domain.APIError values carrying a 400 status.
func (p *Parser) Validate(req *http.Request) error {
	if req == nil {
		return &domain.ArgumentError{Name: "req"}
	}
	if req.Body == nil || req.Body == http.NoBody {
		return domain.ErrInvalidRequest(msgContentNull).WithCode(domain.ErrorCodeMissingContent)
	}

	ct := req.Header.Get("Content-Type")
	if strings.TrimSpace(ct) == "" {
		return domain.ErrInvalidRequest(msgContentTypeNull).WithCode(domain.ErrorCodeMissingContentType)
	}

	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	if !p.supports(mediaType) {
		return domain.ErrInvalidRequest(fmt.Sprintf(msgUnsupportedType, mediaType)).WithCode(domain.ErrorCodeUnsupportedBatch)
	}
	return nil
}

func (p *Parser) supports(mediaType string) bool {
	types := p.MediaTypes
	if len(types) == 0 {
		types = []string{DefaultMediaType}
	}
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t), mediaType) {
			return true
		}
	}
	return false
}

// Parse validates req and decodes one sub-request per part, in envelope
// order.
//
// Every sub-request gets a context derived from ctx carrying a copy of the
// envelope's correlation properties minus the routing context and the
// disposal registry; each gets its own empty registry and is marked as a
// batch sub-request. Relative targets are resolved against the envelope.
func (p *Parser) Parse(ctx context.Context, req *http.Request) ([]*http.Request, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("The batch request Content-Type is malformed: %v.", err)).WithCode(domain.ErrorCodeUnsupportedBatch)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, domain.ErrInvalidRequest("The batch request Content-Type must declare a multipart boundary.").WithCode(domain.ErrorCodeUnsupportedBatch)
	}

	scheme, host := envelopeBase(req)
	parent := domain.PropertiesFrom(req.Context())

	var subs []*http.Request
	mr := multipart.NewReader(req.Body, boundary)
	for i := 0; ; i++ {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidPart(i, err)
		}
		if p.MaxParts > 0 && i >= p.MaxParts {
			return nil, domain.ErrInvalidRequest(fmt.Sprintf("The batch request contains more than %d parts.", p.MaxParts)).WithCode(domain.ErrorCodeTooManyParts)
		}

		sub, err := readSubRequest(part)
		part.Close()
		if err != nil {
			return nil, invalidPart(i, err)
		}

		resolveTarget(sub, scheme, host)
		subs = append(subs, sub.WithContext(subRequestContext(ctx, parent)))
	}

	return subs, nil
}

func invalidPart(i int, err error) error {
	return domain.ErrInvalidRequest(fmt.Sprintf("Batch part %d is not a valid HTTP request: %v.", i, err)).WithCode(domain.ErrorCodeInvalidBatchPart)
}

func readSubRequest(part *multipart.Part) (*http.Request, error) {
	mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("content type: %w", err)
	}
	if mediaType != httpMessageMediaType {
		return nil, fmt.Errorf("content type must be %q, got %q", httpMessageMediaType, mediaType)
	}
	if mt, ok := params["msgtype"]; ok && !strings.EqualFold(mt, msgTypeRequest) {
		return nil, fmt.Errorf("msgtype must be %q, got %q", msgTypeRequest, mt)
	}

	sub, err := http.ReadRequest(bufio.NewReader(part))
	if err != nil {
		return nil, err
	}

	// The part reader is invalidated by the next part, so the body is
	// buffered here.
	body, err := io.ReadAll(sub.Body)
	sub.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	sub.TransferEncoding = nil
	sub.ContentLength = int64(len(body))
	if len(body) == 0 {
		sub.Body = http.NoBody
	} else {
		sub.Body = io.NopCloser(bytes.NewReader(body))
	}
	return sub, nil
}

// envelopeBase returns the scheme and authority of the envelope target.
func envelopeBase(req *http.Request) (scheme, host string) {
	scheme = req.URL.Scheme
	if scheme == "" {
		scheme = "http"
		if req.TLS != nil {
			scheme = "https"
		}
	}
	host = req.URL.Host
	if host == "" {
		host = req.Host
	}
	return scheme, host
}

// resolveTarget makes a relative sub-request target absolute. A Host header
// in the part wins over the envelope authority.
func resolveTarget(sub *http.Request, scheme, host string) {
	if sub.URL.IsAbs() {
		if sub.Host == "" {
			sub.Host = sub.URL.Host
		}
		return
	}
	if sub.Host != "" {
		host = sub.Host
	}
	sub.URL.Scheme = scheme
	sub.URL.Host = host
	sub.Host = host
}

func subRequestContext(ctx context.Context, parent *domain.Properties) context.Context {
	var props *domain.Properties
	if parent != nil {
		props = parent.CopyExcept(domain.PropertyRouteContext, domain.PropertyDisposables)
	} else {
		props = domain.NewProperties()
	}
	props.Set(domain.PropertyDisposables, domain.NewRegistry())
	props.Set(domain.PropertyBatchSubRequest, true)

	// Each sub-request is routed afresh.
	ctx = context.WithValue(ctx, chi.RouteCtxKey, (*chi.Context)(nil))
	return domain.WithProperties(ctx, props)
}
