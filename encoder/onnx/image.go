package onnx

import (
	"context"
	"fmt"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

const pixelInput = "pixel_values"

// ImageEncoder runs a CLIP vision tower with projection and L2-normalizes
// its output.
type ImageEncoder struct {
	sess *session
	dim  int
}

var _ encoder.ImageEncoder = (*ImageEncoder)(nil)

func newImageEncoder(cfg Config, device encoder.Device) (*ImageEncoder, error) {
	sess, err := openSession(cfg.ImageModelPath, device, cfg.Threads, "image_embeds")
	if err != nil {
		return nil, err
	}
	if !sess.has(pixelInput) {
		_ = sess.close()
		return nil, fmt.Errorf("onnx: image model has no %q input", pixelInput)
	}
	return &ImageEncoder{sess: sess, dim: cfg.ImageDim}, nil
}

// Dim implements encoder.ImageEncoder.
func (e *ImageEncoder) Dim() int { return e.dim }

// EncodeImage implements encoder.ImageEncoder.
func (e *ImageEncoder) EncodeImage(ctx context.Context, pixels encoder.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := onnxruntime.NewTensor(onnxruntime.NewShape(pixels.Shape...), pixels.Data)
	if err != nil {
		return nil, fmt.Errorf("onnx: pixel tensor: %w", err)
	}
	defer func() {
		_ = in.Destroy()
	}()

	out, _, err := e.sess.run(map[string]onnxruntime.Value{pixelInput: in})
	if err != nil {
		return nil, err
	}
	if len(out) != e.dim {
		return nil, fmt.Errorf("onnx: image embedding has %d values, want %d", len(out), e.dim)
	}
	return vector.Normalize(out)
}

// Close releases the session.
func (e *ImageEncoder) Close() error { return e.sess.close() }
