package onnx

import (
	"fmt"
	"slices"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/kristinmlloyd/VibeCheck/encoder"
)

// session wraps a dynamic session together with its declared input and
// output names.
type session struct {
	sess    *onnxruntime.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

func openSession(path string, device encoder.Device, threads int, wantOutputs ...string) (*session, error) {
	inputs, outputs, err := onnxruntime.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info %s: %w", path, err)
	}
	inNames := make([]string, len(inputs))
	for i, in := range inputs {
		inNames[i] = in.Name
	}
	var outNames []string
	for _, o := range outputs {
		if len(wantOutputs) == 0 || slices.Contains(wantOutputs, o.Name) {
			outNames = append(outNames, o.Name)
		}
	}
	if len(outNames) == 0 {
		if len(outputs) == 0 {
			return nil, fmt.Errorf("onnx: model %s declares no outputs", path)
		}
		outNames = []string{outputs[0].Name}
	}
	// Keep one output; Run allocates it.
	outNames = outNames[:1]

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer func() {
		_ = options.Destroy()
	}()
	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, fmt.Errorf("onnx: set threads: %w", err)
		}
	}
	if device == encoder.DeviceCUDA {
		if err := appendCUDA(options); err != nil {
			return nil, err
		}
	}

	sess, err := onnxruntime.NewDynamicAdvancedSession(path, inNames, outNames, options)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session %s: %w", path, err)
	}
	return &session{sess: sess, inputs: inNames, outputs: outNames}, nil
}

// run executes the session with values keyed by input name and returns the
// single float32 output with its shape.
func (s *session) run(values map[string]onnxruntime.Value) ([]float32, onnxruntime.Shape, error) {
	in := make([]onnxruntime.Value, len(s.inputs))
	for i, name := range s.inputs {
		v, ok := values[name]
		if !ok {
			return nil, nil, fmt.Errorf("onnx: missing input %q", name)
		}
		in[i] = v
	}
	out := make([]onnxruntime.Value, len(s.outputs))
	defer func() {
		for _, v := range out {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()
	if err := s.sess.Run(in, out); err != nil {
		return nil, nil, fmt.Errorf("onnx: inference: %w", err)
	}
	t, ok := out[0].(*onnxruntime.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("onnx: output %q is not float32", s.outputs[0])
	}
	data := slices.Clone(t.GetData())
	return data, t.GetShape().Clone(), nil
}

func (s *session) has(input string) bool {
	return slices.Contains(s.inputs, input)
}

func (s *session) close() error {
	if s == nil || s.sess == nil {
		return nil
	}
	err := s.sess.Destroy()
	s.sess = nil
	return err
}

func appendCUDA(options *onnxruntime.SessionOptions) error {
	cuda, err := onnxruntime.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("onnx: cuda provider: %w", err)
	}
	defer func() {
		_ = cuda.Destroy()
	}()
	if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
		return fmt.Errorf("onnx: cuda provider: %w", err)
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("onnx: cuda provider: %w", err)
	}
	return nil
}

// probeCUDA reports whether a session could use the CUDA provider.
func probeCUDA() error {
	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return err
	}
	defer func() {
		_ = options.Destroy()
	}()
	return appendCUDA(options)
}

func int64Tensor(shape onnxruntime.Shape, data []int64) (*onnxruntime.Tensor[int64], error) {
	return onnxruntime.NewTensor(shape, data)
}
