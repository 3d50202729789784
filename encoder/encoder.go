package encoder

import (
	"context"
	"fmt"
	"image"
)

// Modality names used in logs, errors and metrics.
const (
	ModalityText  = "text"
	ModalityImage = "image"
)

// TextEncoder maps a string to an L2-normalized embedding of Dim values.
// Implementations must be safe for concurrent use.
type TextEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// ImageEncoder maps a preprocessed pixel tensor to an embedding of Dim
// values. Implementations must be safe for concurrent use.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, pixels Tensor) ([]float32, error)
	Dim() int
}

// Preprocessor converts a decoded image into the tensor an ImageEncoder
// expects.
type Preprocessor interface {
	Preprocess(img image.Image) (Tensor, error)
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Info describes the models a Loader produces.
type Info struct {
	TextModel  string
	TextDim    int
	ImageModel string
	ImageDim   int
}

// Loader initializes models. A Bank calls each Load method at most once per
// successful load.
type Loader interface {
	Info() Info
	SelectDevice(preferred Device) Device
	LoadText(ctx context.Context, device Device) (TextEncoder, error)
	LoadImage(ctx context.Context, device Device) (ImageEncoder, Preprocessor, error)
}

// Device is an execution device for inference.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// IsValid reports whether d is a supported device setting.
func (d Device) IsValid() bool {
	switch d {
	case DeviceAuto, DeviceCPU, DeviceCUDA:
		return true
	}
	return false
}

// LoadError reports a model that could not be initialized. It is returned to
// the caller that triggered the load; the next call retries.
type LoadError struct {
	Modality string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("encoder: load %s model: %v", e.Modality, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
