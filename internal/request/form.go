package request

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormField is a text part of a multipart form.
type FormField struct {
	Name  string
	Value string
}

// FormFile is a file part of a multipart form.
type FormFile struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

// Form is a multipart/form-data body. Parts are encoded in the order they were added.
type Form struct {
	fields []FormField
	files  []FormFile
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Field appends a text part.
func (f *Form) Field(name, value string) *Form {
	f.fields = append(f.fields, FormField{Name: name, Value: value})
	return f
}

// File appends a file part. An empty contentType is sent as application/octet-stream.
func (f *Form) File(field, fileName, contentType string, content []byte) *Form {
	f.files = append(f.files, FormFile{
		Field:       field,
		FileName:    fileName,
		ContentType: contentType,
		Content:     content,
	})
	return f
}

func (f *Form) Fields() []FormField {
	return append([]FormField(nil), f.fields...)
}

func (f *Form) Files() []FormFile {
	return append([]FormFile(nil), f.files...)
}

func (f *Form) clone() *Form {
	cp := &Form{fields: f.Fields(), files: make([]FormFile, len(f.files))}
	for i, file := range f.files {
		file.Content = append([]byte(nil), file.Content...)
		cp.files[i] = file
	}
	return cp
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Encode renders the form and returns the Content-Type carrying the boundary.
func (f *Form) Encode() (string, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range f.fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return "", nil, fmt.Errorf("failed to write form field %s: %w", field.Name, err)
		}
	}
	for _, file := range f.files {
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(file.Field), quoteEscaper.Replace(file.FileName)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create form file %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return "", nil, fmt.Errorf("failed to write form file %s: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close form: %w", err)
	}
	return w.FormDataContentType(), buf.Bytes(), nil
}
