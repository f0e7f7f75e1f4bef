package preview

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"rasterkit/internal/fileutil"
)

// WritePNG encodes img to path. The file appears only once complete.
func WritePNG(path string, img image.Image) error {
	err := fileutil.WriteAtomic(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(f, img); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return &Error{Stage: "write", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return nil
}
