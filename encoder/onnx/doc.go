// Package onnx loads the sentence-transformer text model and the CLIP
// vision model from ONNX exports and runs them with onnxruntime.
//
// The onnxruntime shared library and the HuggingFace tokenizers static
// library must be available to cgo. Integration tests run with the "onnx"
// build tag and read model locations from VIBECHECK_ONNX_* variables.
package onnx
