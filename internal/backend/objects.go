package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PutObject transfers data to a presigned upload URL. It returns nil only
// once object storage acknowledged the write.
func (c *Client) PutObject(ctx context.Context, uploadURL, contentType string, data []byte) (err error) {
	ctx, span := tracer.Start(ctx, "objects.put",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("size_bytes", len(data))),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.RecordBackendCall("put_object", time.Since(start), err)
		if err != nil {
			span.RecordError(err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put_object: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(data))

	resp, err := c.objects.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, "put_object", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.KindRemote, "put_object",
			fmt.Sprintf("object storage rejected upload (%d)", resp.StatusCode))
	}
	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// GetObject opens the object behind a presigned read URL. The caller closes
// the returned body.
func (c *Client) GetObject(ctx context.Context, downloadURL string) (io.ReadCloser, int64, error) {
	ctx, span := tracer.Start(ctx, "objects.get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("get_object: build request: %w", err)
	}
	resp, err := c.objects.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, 0, apperr.Wrap(apperr.KindNetwork, "get_object", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := apperr.FromStatus("get_object", resp.StatusCode, "")
		span.RecordError(err)
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int64("size_bytes", resp.ContentLength))
	return resp.Body, resp.ContentLength, nil
}
