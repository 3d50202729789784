// Package encoder provides the Encoder Bank: the text and image encoders of
// a process, loaded lazily through an injected Loader, plus the CLIP image
// preprocessing transform and image decoding.
//
// A Bank is constructed once at startup and passed to the query fuser and
// the offline builder. Model implementations live in the onnx and openai
// subpackages; tests supply their own Loader.
package encoder
