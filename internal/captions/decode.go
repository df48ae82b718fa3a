package captions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a caption file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath infers the encoding from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// envelope matches upload responses and saved render requests, which carry
// the timeline under a "captions" key.
type envelope struct {
	Captions Timeline `json:"captions" yaml:"captions"`
}

// Decode reads a timeline either as a bare list of segments or as an object
// with a captions field.
func Decode(r io.Reader, format Format) (Timeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: caption document is empty", ErrInvalid)
	}

	switch format {
	case FormatYAML:
		return decodeYAML(trimmed)
	case FormatJSON, "":
		return decodeJSON(trimmed)
	default:
		return nil, fmt.Errorf("unsupported caption format %q", format)
	}
}

func decodeJSON(data []byte) (Timeline, error) {
	if data[0] == '[' {
		var timeline Timeline
		if err := json.Unmarshal(data, &timeline); err != nil {
			return nil, fmt.Errorf("%w: decode json captions: %v", ErrInvalid, err)
		}
		return timeline, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode json captions: %v", ErrInvalid, err)
	}
	return env.Captions, nil
}

func decodeYAML(data []byte) (Timeline, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: decode yaml captions: %v", ErrInvalid, err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == yaml.SequenceNode {
		var timeline Timeline
		if err := root.Decode(&timeline); err != nil {
			return nil, fmt.Errorf("%w: decode yaml captions: %v", ErrInvalid, err)
		}
		return timeline, nil
	}
	var env envelope
	if err := root.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode yaml captions: %v", ErrInvalid, err)
	}
	return env.Captions, nil
}

// DecodeFile opens path and decodes it using the format implied by its extension.
func DecodeFile(path string) (Timeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open captions: %w", err)
	}
	defer file.Close()
	return Decode(file, FormatForPath(path))
}

// Encode writes the timeline as indented JSON.
func Encode(w io.Writer, timeline Timeline) error {
	if timeline == nil {
		timeline = Timeline{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(timeline); err != nil {
		return fmt.Errorf("encode captions: %w", err)
	}
	return nil
}
