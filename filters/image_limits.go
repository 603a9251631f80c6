package filters

import (
	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
)

const (
	maxImageDimension       = 32768
	maxImagePixels    int64 = 64 * 1024 * 1024
)

// ErrImageBounds reports an image whose declared size no decoder should
// allocate for.
var ErrImageBounds = errors.New("image bounds out of range")

func validateImageBounds(width, height int64) error {
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrImageBounds, "%d x %d", width, height)
	}
	if width > maxImageDimension || height > maxImageDimension {
		return errors.Wrapf(ErrImageBounds, "dimension exceeds %d (%d x %d)", maxImageDimension, width, height)
	}
	if pixels := width * height; pixels > maxImagePixels {
		return errors.Wrapf(ErrImageBounds, "%d pixels exceed %d", pixels, maxImagePixels)
	}
	return nil
}

// CheckImageBounds validates the Width and Height of an image stream
// dictionary. Dictionaries that are not images, or whose size entries are
// indirect, pass.
func CheckImageBounds(dict *raw.Node) error {
	if sub, _ := raw.LookupName(dict, "Subtype"); sub != "Image" {
		return nil
	}
	w, okW := raw.LookupInt(dict, "Width")
	h, okH := raw.LookupInt(dict, "Height")
	if !okW || !okH {
		return nil
	}
	return validateImageBounds(w, h)
}
