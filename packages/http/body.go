package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// File is one part of a multipart upload. Content wins over Path.
type File struct {
	Field       string
	Name        string
	Path        string
	Content     []byte
	ContentType string
}

// encodeBody renders the request body and the Content-Type it implies. Data
// takes precedence over JSON when both are set, unless Data is empty; files
// switch the whole body to multipart/form-data with mapping Data sent as plain
// fields.
func encodeBody(req *Request) ([]byte, string, error) {
	if len(req.Files) > 0 {
		return encodeMultipart(req)
	}

	if req.Data != nil && (req.JSON == nil || !emptyData(req.Data)) {
		return encodeData(req)
	}

	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal JSON body: %w", err)
		}
		return data, ContentTypeJSON, nil
	}

	return nil, "", nil
}

func encodeData(req *Request) ([]byte, string, error) {
	switch v := req.Data.(type) {
	case string:
		return []byte(v), "", nil
	case []byte:
		return v, "", nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read request body: %w", err)
		}
		return data, "", nil
	case url.Values:
		return []byte(v.Encode()), ContentTypeForm, nil
	}

	if !IsMapping(req.Data) {
		return nil, "", fmt.Errorf("unsupported data type %T", req.Data)
	}

	// A mapping goes out as JSON when the caller asked for it explicitly.
	if ct, ok := req.Header("Content-Type"); ok && strings.Contains(strings.ToLower(ct), "json") {
		data, err := json.Marshal(req.Data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal data body: %w", err)
		}
		return data, "", nil
	}

	return []byte(formValues(req.Data).Encode()), ContentTypeForm, nil
}

func encodeMultipart(req *Request) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if req.Data != nil {
		if !IsMapping(req.Data) {
			return nil, "", fmt.Errorf("data must be a mapping when files are attached, got %T", req.Data)
		}
		for k, vals := range formValues(req.Data) {
			for _, v := range vals {
				if err := writer.WriteField(k, v); err != nil {
					return nil, "", fmt.Errorf("failed to write form field: %w", err)
				}
			}
		}
	}

	for _, f := range req.Files {
		if err := writeFilePart(writer, f); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body.Bytes(), writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, f *File) error {
	content := f.Content
	name := f.Name
	if content == nil {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", f.Path, err)
		}
		content = data
		if name == "" {
			name = filepath.Base(f.Path)
		}
	}

	var part io.Writer
	var err error
	if f.ContentType != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Field, name))
		h.Set("Content-Type", f.ContentType)
		part, err = writer.CreatePart(h)
	} else {
		part, err = writer.CreateFormFile(f.Field, name)
	}
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write file %s: %w", f.Field, err)
	}
	return nil
}

// IsMapping reports whether v is a map with string keys.
// emptyData reports an empty string, byte slice or mapping. Readers are never
// empty here since they cannot be inspected without consuming them.
func emptyData(v any) bool {
	switch d := v.(type) {
	case string:
		return d == ""
	case []byte:
		return len(d) == 0
	case io.Reader:
		return false
	}
	return IsMapping(v) && reflect.ValueOf(v).Len() == 0
}

func IsMapping(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

func formValues(m any) url.Values {
	values := url.Values{}
	rv := reflect.ValueOf(m)
	iter := rv.MapRange()
	for iter.Next() {
		val := iter.Value().Interface()
		if val == nil {
			continue
		}
		for _, s := range queryValues(val) {
			values.Add(iter.Key().String(), s)
		}
	}
	return values
}

func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
