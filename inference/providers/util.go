package providers

import (
	"os"
	"path/filepath"
	"runtime"
)

// LibraryEnv overrides the onnxruntime shared library location.
const LibraryEnv = "INFER_ORT_LIB"

// GetSharedLibPath returns the path to the shared library for the current
// platform. INFER_ORT_LIB takes precedence over the bundled third_party copy.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath() string {
	if p := os.Getenv(LibraryEnv); p != "" {
		return p
	}

	var name string
	switch runtime.GOOS {
	case "windows":
		name = "onnxruntime.dll"
	case "darwin":
		name = "libonnxruntime.dylib"
	default:
		name = "onnxruntime.so"
		if runtime.GOARCH == "arm64" {
			name = "onnxruntime_arm64.so"
		}
	}
	return filepath.Join("third_party", name)
}
