package tutorapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
)

// Body is an encoded request body with its content type. An empty
// ContentType means JSON.
type Body struct {
	Data        []byte
	ContentType string
}

func (b Body) options(method string) RequestOptions {
	return RequestOptions{Method: method, Body: b.Data, ContentType: b.ContentType}
}

// JSONBody encodes v as a JSON request body.
func JSONBody(v any) (Body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Body{}, err
	}
	return Body{Data: data}, nil
}

// FilePart is one uploaded file of a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// MultipartBody builds a multipart/form-data body from plain fields and
// files. Fields are written in key order.
func MultipartBody(fields map[string]string, files ...FilePart) (Body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return Body{}, err
		}
	}

	for _, f := range files {
		part, err := createFilePart(w, f)
		if err != nil {
			return Body{}, err
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return Body{}, err
			}
		}
	}

	if err := w.Close(); err != nil {
		return Body{}, err
	}
	return Body{Data: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func createFilePart(w *multipart.Writer, f FilePart) (io.Writer, error) {
	if f.ContentType == "" {
		return w.CreateFormFile(f.Field, f.Filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+quoteEscaper.Replace(f.Field)+
		`"; filename="`+quoteEscaper.Replace(f.Filename)+`"`)
	h.Set("Content-Type", f.ContentType)
	return w.CreatePart(h)
}
