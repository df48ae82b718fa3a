package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the WhisperX model, e.g. "large-v3-turbo". Empty selects DefaultModel.
	Model       string
	CUDAEnabled bool
}

const (
	DefaultModel = "large-v3"
	// UVXCommand is the launcher WhisperX runs under.
	UVXCommand = "uvx"
)

// Package index and decoding settings passed to every run.
const (
	cudaIndexURL      = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL      = "https://pypi.org/simple"
	batchSize         = "4"
	chunkSize         = "15"
	beamSize          = "5"
	segmentResolution = "sentence"
	outputFormat      = "json"
	cpuDevice         = "cpu"
	cudaDevice        = "cuda"
	cpuComputeType    = "float32"
	vadMethod         = "silero"
)
