// Package media turns a media source descriptor (a URL or an in-memory file)
// into frames the renderer can upload as a texture.
package media

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Kind is the classification of a source.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".mov":  {},
}

// FileHandle is a local binary blob, e.g. a file the user picked.
type FileHandle struct {
	Name string
	// Type is the declared MIME type. When empty it is sniffed from Data.
	Type string
	Data []byte
}

// MIMEType returns the declared type or the sniffed one.
func (f *FileHandle) MIMEType() string {
	if f.Type != "" {
		return f.Type
	}
	return http.DetectContentType(f.Data)
}

// Source is either a URL or a FileHandle. The zero value is "no source".
type Source struct {
	url  string
	file *FileHandle
}

// URL returns a source that refers to a remote or local address.
func URL(u string) Source {
	return Source{url: u}
}

// File returns a source backed by an in-memory blob.
func File(f *FileHandle) Source {
	return Source{file: f}
}

// IsZero reports whether the source is empty.
func (s Source) IsZero() bool {
	return s.url == "" && s.file == nil
}

// URL returns the address of a URL source.
func (s Source) URL() (string, bool) {
	return s.url, s.file == nil && s.url != ""
}

// File returns the handle of a file source.
func (s Source) File() (*FileHandle, bool) {
	return s.file, s.file != nil
}

// Same compares identity: URLs by value, file handles by pointer.
func (s Source) Same(o Source) bool {
	if s.file != nil || o.file != nil {
		return s.file == o.file
	}
	return s.url == o.url
}

func (s Source) String() string {
	if s.file != nil {
		if s.file.Name != "" {
			return "file:" + s.file.Name
		}
		return "file:<blob>"
	}
	return s.url
}

// Classify decides whether a source is decoded as a video or an image.
func Classify(s Source) Kind {
	if s.file != nil {
		if strings.HasPrefix(strings.ToLower(s.file.MIMEType()), "video/") {
			return KindVideo
		}
		return KindImage
	}

	p := s.url
	if u, err := url.Parse(s.url); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if _, ok := videoExtensions[strings.ToLower(path.Ext(p))]; ok {
		return KindVideo
	}
	return KindImage
}
