package domain

import "fmt"

// DefaultMIME is used when a request names no output format.
const DefaultMIME = "image/tiff"

// OutputFormat maps a MIME type to the GDAL driver that writes it.
type OutputFormat struct {
	MIME      string
	Driver    string
	Extension string
	Options   []string // creation options
}

var outputFormats = map[string]OutputFormat{
	"image/tiff": {MIME: "image/tiff", Driver: "GTiff", Extension: "tif", Options: []string{"-co", "COMPRESS=LZW"}},
	"image/png":  {MIME: "image/png", Driver: "PNG", Extension: "png"},
	"image/gif":  {MIME: "image/gif", Driver: "GIF", Extension: "gif"},
}

// LookupMIME returns the output format for a MIME type.
func LookupMIME(mime string) (OutputFormat, error) {
	if mime == "" {
		mime = DefaultMIME
	}
	f, ok := outputFormats[mime]
	if !ok {
		return OutputFormat{}, fmt.Errorf("unrecognized output format: %s", mime)
	}
	return f, nil
}

// SupportedMIMEs lists the output formats in a stable order.
func SupportedMIMEs() []string {
	return []string{"image/tiff", "image/png", "image/gif"}
}
