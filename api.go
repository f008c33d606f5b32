package eduapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Get performs a GET request and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) ([]byte, error) {
	desc := newDescriptor(http.MethodGet, path, nil, opts)
	return c.call(ctx, desc)
}

// Post performs a POST request. Body handling matches encodeBody.
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts ...CallOption) ([]byte, error) {
	encoded, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	desc := newDescriptor(http.MethodPost, path, encoded, opts)
	return c.call(ctx, desc)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}, opts ...CallOption) ([]byte, error) {
	encoded, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	desc := newDescriptor(http.MethodPut, path, encoded, opts)
	return c.call(ctx, desc)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...CallOption) ([]byte, error) {
	desc := newDescriptor(http.MethodDelete, path, nil, opts)
	return c.call(ctx, desc)
}

// GetJSON performs a GET request and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}, opts ...CallOption) error {
	body, err := c.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(body, out)
}

// PostJSON performs a POST request and decodes the response body into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	respBody, err := c.Post(ctx, path, body, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(respBody, out)
}

// UploadFile sends file as a multipart/form-data POST under the "file"
// field, with extra form fields alongside. onProgress, when non-nil, is
// invoked with cumulative bytes written; on a retried attempt it restarts
// from zero.
func (c *Client) UploadFile(ctx context.Context, path, filename string, file io.Reader, fields map[string]string, onProgress ProgressFunc, opts ...CallOption) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("eduapi: create multipart file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("eduapi: buffer upload body: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("eduapi: write form field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("eduapi: finalize multipart body: %w", err)
	}

	desc := newDescriptor(http.MethodPost, path, buf.Bytes(), opts)
	desc.ContentType = writer.FormDataContentType()
	desc.onProgress = onProgress
	return c.call(ctx, desc)
}

func newDescriptor(method, path string, body []byte, opts []CallOption) *RequestDescriptor {
	desc := &RequestDescriptor{
		Method: method,
		Path:   path,
		Body:   body,
	}
	for _, opt := range opts {
		opt(desc)
	}
	return desc
}

// encodeBody turns a call-surface body into wire bytes. nil stays nil,
// []byte and json.RawMessage pass through, io.Readers are drained, anything
// else is marshalled as JSON.
func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("eduapi: read request body: %w", err)
		}
		return data, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("eduapi: encode request body: %w", err)
		}
		return data, nil
	}
}

func decodeJSON(body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("eduapi: decode response body: %w", err)
	}
	return nil
}
