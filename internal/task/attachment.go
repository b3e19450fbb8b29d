package task

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxAttachmentSize is the largest attachment accepted (5 MiB).
const MaxAttachmentSize = 5 << 20

const defaultContentType = "application/octet-stream"

// Attachment is an opaque file carried by a task. A task holds at most one;
// setting a new attachment replaces the previous one.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Data []byte `json:"data,omitempty"`
}

// IsImage reports whether the attachment can be previewed inline. Everything
// else is offered as a download.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.Type, "image/")
}

type fileType struct {
	mimeType string
	magic    []byte
}

// Signatures are checked in order; the first prefix match wins.
var fileTypes = []fileType{
	{mimeType: "image/jpeg", magic: []byte{0xFF, 0xD8, 0xFF}},
	{mimeType: "image/png", magic: []byte{0x89, 0x50, 0x4E, 0x47}},
	{mimeType: "image/gif", magic: []byte{0x47, 0x49, 0x46, 0x38}},
	{mimeType: "application/pdf", magic: []byte{0x25, 0x50, 0x44, 0x46}},
	{mimeType: "application/zip", magic: []byte{0x50, 0x4B, 0x03, 0x04}},
}

// DetectType returns the MIME type of an attachment. Magic bytes are trusted
// first, then the file extension, then net/http content sniffing.
func DetectType(name string, data []byte) string {
	for _, ft := range fileTypes {
		if bytes.HasPrefix(data, ft.magic) {
			return ft.mimeType
		}
	}
	if isWebP(data) {
		return "image/webp"
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return defaultContentType
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

// CheckAttachmentSize rejects sizes above MaxAttachmentSize. Callers reading
// files use it on the stat result before loading any bytes.
func CheckAttachmentSize(size int64) error {
	if size < 0 {
		return &ValidationError{Field: "attachment", Reason: "negative size"}
	}
	if size > MaxAttachmentSize {
		return &ValidationError{
			Field:  "attachment",
			Reason: fmt.Sprintf("size %d exceeds limit of %d bytes", size, MaxAttachmentSize),
		}
	}
	return nil
}

// NewAttachment builds and validates an attachment from raw file content.
func NewAttachment(name string, data []byte) (*Attachment, error) {
	a := &Attachment{
		Name: filepath.Base(filepath.Clean(name)),
		Type: DetectType(name, data),
		Size: int64(len(data)),
		Data: data,
	}
	if err := ValidateAttachment(a); err != nil {
		return nil, err
	}
	return a, nil
}

// ValidateAttachment checks a blob descriptor. A nil attachment is valid.
func ValidateAttachment(a *Attachment) error {
	if a == nil {
		return nil
	}
	if strings.TrimSpace(a.Name) == "" || a.Name == "." || a.Name == string(filepath.Separator) {
		return &ValidationError{Field: "attachment", Reason: "name required"}
	}
	if err := CheckAttachmentSize(a.Size); err != nil {
		return err
	}
	if a.Data != nil && int64(len(a.Data)) != a.Size {
		return &ValidationError{
			Field:  "attachment",
			Reason: fmt.Sprintf("size %d does not match %d data bytes", a.Size, len(a.Data)),
		}
	}
	if _, _, err := mime.ParseMediaType(a.Type); err != nil {
		return &ValidationError{Field: "attachment", Reason: fmt.Sprintf("bad type %q", a.Type)}
	}
	return nil
}
