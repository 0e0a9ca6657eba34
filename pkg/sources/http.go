package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultHTTPTimeout = 30 * time.Second

	// MaxResponseSize is the largest records response accepted (50MB)
	MaxResponseSize = 50 * 1024 * 1024
)

// HTTPSource fetches a records document with a single GET. Authentication and retries are
// left to whatever sits in front of the endpoint; static headers are sent as given.
type HTTPSource struct {
	url       string
	headers   map[string]string
	options   Options
	client    *http.Client
	extractor *Extractor
	logger    ectologger.Logger
}

func NewHTTPSource(url string, headers map[string]string, timeout time.Duration, options Options, logger ectologger.Logger) (*HTTPSource, error) {
	if url == "" {
		return nil, fmt.Errorf("a URL is required for the %s source", TypeHTTP)
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	extractor := NewExtractor()
	if err := extractor.Validate(options.RecordsPath); err != nil {
		return nil, fmt.Errorf("invalid records path %q: %w", options.RecordsPath, err)
	}

	return &HTTPSource{
		url:       url,
		headers:   headers,
		options:   options,
		client:    &http.Client{Timeout: timeout},
		extractor: extractor,
		logger:    logger,
	}, nil
}

func (s *HTTPSource) Name() string {
	return TypeHTTP
}

func (s *HTTPSource) Fetch(ctx context.Context) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, "sources.HTTPSource.Fetch")
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordSourceFetch(s.Name(), time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: GET %s", s.url)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large (max %d bytes)", MaxResponseSize)
	}

	s.logger.WithContext(ctx).Debugf("HTTP GET %s -> %d (%s)", s.url, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s returned status %d", s.url, resp.StatusCode)
	}

	return DecodeBatch(body, s.options.label(s.Name()), s.options, s.extractor)
}

// DecodeBatch builds a batch from one JSON document. It is shared by the HTTP source and the
// sync API, which both receive a single document.
func DecodeBatch(data []byte, label string, options Options, extractor *Extractor) (*Batch, error) {
	if extractor == nil {
		extractor = NewExtractor()
	}

	document, err := models.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse records document: %w", err)
	}

	values, err := extractor.Extract(document, options.RecordsPath)
	if err != nil {
		return nil, err
	}

	collector := diagnostics.New(nil)
	records := collect(values, "document", options, collector)

	return &Batch{
		Label:    label,
		Records:  records,
		Warnings: collector.Warnings(),
	}, nil
}
