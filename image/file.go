package image

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("fern.image")

// cborEncMode uses canonical encoding so identical functions produce
// identical images.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a function image to CBOR bytes.
func Marshal(img *FunctionImage) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes a function image from CBOR bytes.
func Unmarshal(data []byte) (*FunctionImage, error) {
	var img FunctionImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal function image: %w", err)
	}
	return &img, nil
}

// WriteFile saves a function image to disk.
func WriteFile(path string, img *FunctionImage) error {
	data, err := Marshal(img)
	if err != nil {
		return fmt.Errorf("image: marshal for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	log.Infof("wrote image %s (%d bytes)", path, len(data))
	return nil
}

// ReadFile loads a function image from disk.
func ReadFile(path string) (*FunctionImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	img, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	log.Infof("read image %s (%d bytes)", path, len(data))
	return img, nil
}
