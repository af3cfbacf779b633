package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
)

// File is one file part of a multipart form. Content is held in memory so the
// form can be re-sent after a token refresh.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// Form is a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// NewForm creates an empty form.
func NewForm() *Form {
	return &Form{Fields: make(map[string]string)}
}

// Set adds a text field. Empty values are kept.
func (f *Form) Set(name, value string) *Form {
	if f.Fields == nil {
		f.Fields = make(map[string]string)
	}
	f.Fields[name] = value
	return f
}

// AddFile reads r into memory and attaches it under field.
func (f *Form) AddFile(field, filename string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	f.Files = append(f.Files, File{Field: field, Filename: filename, Content: data})
	return nil
}

// AddFilePath attaches the file at path under field.
func (f *Form) AddFilePath(field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return f.AddFile(field, filepath.Base(path), file)
}

// HasFiles reports whether any file part is attached.
func (f *Form) HasFiles() bool {
	return f != nil && len(f.Files) > 0
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, f.Fields[name]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	for _, file := range f.Files {
		var (
			part io.Writer
			err  error
		)
		if file.ContentType != "" {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
			h.Set("Content-Type", file.ContentType)
			part, err = w.CreatePart(h)
		} else {
			part, err = w.CreateFormFile(file.Field, file.Filename)
		}
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", file.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
