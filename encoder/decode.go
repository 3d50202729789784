package encoder

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"

	_ "golang.org/x/image/webp" // register WebP decoder
)

// DecodeImage decodes a JPEG, PNG, GIF or WebP image and returns it with
// its format name.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("encoder: decode image: %w", err)
	}
	return img, format, nil
}
