package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadOptions are the optional form fields of an upload.
type UploadOptions struct {
	Subfolder string
	// Type is the destination folder type: input (server default), temp or
	// output.
	Type      string
	Overwrite bool
	// OriginalRef names the image a mask applies to; only sent for masks.
	OriginalRef *Image
}

// UploadResult is the server's record of a stored upload.
type UploadResult struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// UploadImage sends the image at path to POST /upload/image.
func (c *Client) UploadImage(ctx context.Context, path string, opts UploadOptions) (*UploadResult, error) {
	opts.OriginalRef = nil
	return c.upload(ctx, "/upload/image", path, opts)
}

// UploadMask sends the mask at path to POST /upload/mask.
func (c *Client) UploadMask(ctx context.Context, path string, opts UploadOptions) (*UploadResult, error) {
	return c.upload(ctx, "/upload/mask", path, opts)
}

func (c *Client) upload(ctx context.Context, endpoint, path string, opts UploadOptions) (*UploadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", path, err)
	}
	body, contentType, err := buildUploadBody(filepath.Base(path), data, opts)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result UploadResult
	if err := decodeBody(req, resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func buildUploadBody(filename string, data []byte, opts UploadOptions) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(uuid.NewString()); err != nil {
		return nil, "", fmt.Errorf("set multipart boundary: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	fields := map[string]string{}
	if s := strings.TrimSpace(opts.Subfolder); s != "" {
		fields["subfolder"] = s
	}
	if t := strings.TrimSpace(opts.Type); t != "" {
		fields["type"] = t
	}
	if opts.Overwrite {
		fields["overwrite"] = "true"
	}
	if opts.OriginalRef != nil {
		ref, err := json.Marshal(opts.OriginalRef)
		if err != nil {
			return nil, "", fmt.Errorf("encode original_ref: %w", err)
		}
		fields["original_ref"] = string(ref)
	}
	for _, name := range []string{"subfolder", "type", "overwrite", "original_ref"} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
