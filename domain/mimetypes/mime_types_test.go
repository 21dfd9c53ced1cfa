package mimetypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		want     MIME
		ok       bool
	}{
		{"PNG", "image/png", ImagePNG, true},
		{"JPEG", "image/jpeg", ImageJPEG, true},
		{"GIF", "image/gif", ImageGIF, true},
		{"PDF", "application/pdf", ApplicationPDF, true},
		{"PDF with parameter", "application/pdf; version=1.7", ApplicationPDF, true},
		{"Plain text", "text/plain; charset=utf-8", Unknown, false},
		{"HTML", "text/html; charset=utf-8", Unknown, false},
		{"Octet stream", "application/octet-stream", Unknown, false},
		{"Invalid MIME", "not a mime", Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, ok := Allowed(tt.detected)
			req.Equal(tt.ok, ok)
			req.Equal(tt.want, got)
		})
	}
}

func TestExtension(t *testing.T) {
	req := require.New(t)
	req.Equal(".jpg", ImageJPEG.Extension())
	req.Equal(".pdf", ApplicationPDF.Extension())
	req.Equal(".bin", Unknown.Extension())
}
