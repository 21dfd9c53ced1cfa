package mimetypes

import "mime"

type MIME string

const (
	Unknown        MIME = "unknown"
	ApplicationPDF MIME = "application/pdf"
	ImagePNG       MIME = "image/png"
	ImageJPEG      MIME = "image/jpeg"
	ImageGIF       MIME = "image/gif"
)

// Uploadable lists the types a client may attach to a message.
var Uploadable = []MIME{ImageJPEG, ImagePNG, ImageGIF, ApplicationPDF}

var extensions = map[MIME]string{
	ImageJPEG:      ".jpg",
	ImagePNG:       ".png",
	ImageGIF:       ".gif",
	ApplicationPDF: ".pdf",
}

// Allowed strips parameters from a detected media type and reports
// whether the result is one of the uploadable types.
func Allowed(detected string) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	for _, m := range Uploadable {
		if string(m) == mt {
			return m, true
		}
	}
	return Unknown, false
}

// Extension is the file suffix used when storing a blob of type m.
func (m MIME) Extension() string {
	if ext, ok := extensions[m]; ok {
		return ext
	}
	return ".bin"
}
