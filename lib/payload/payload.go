package payload

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoSource is returned for an entry without text, hex, base64 or file
	ErrNoSource = errors.New("payload has no source")
	// ErrMultipleSources is returned for an entry with more than one source
	ErrMultipleSources = errors.New("payload has more than one source")
)

// Entry describes a single payload. Exactly one of Text, Hex, Base64 and File
// must be set. Repeat > 1 concatenates the content Repeat times.
type Entry struct {
	Name   string  `yaml:"name,omitempty"`
	Text   *string `yaml:"text,omitempty"`
	Hex    string  `yaml:"hex,omitempty"`
	Base64 string  `yaml:"base64,omitempty"`
	File   string  `yaml:"file,omitempty"`
	Repeat int     `yaml:"repeat,omitempty"`
}

// Manifest is the content of a payload file:
//
//	payloads:
//	  - text: "hello\n"
//	  - hex: "deadbeef"
//	  - file: body.bin
//	    repeat: 4
type Manifest struct {
	Payloads []Entry `yaml:"payloads"`
}

// Load reads a manifest file and returns the payloads in file order. Relative
// file entries are resolved against the directory of the manifest.
func Load(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a manifest. baseDir is used for relative file entries.
func Parse(data []byte, baseDir string) ([][]byte, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	payloads := make([][]byte, 0, len(manifest.Payloads))
	for i, entry := range manifest.Payloads {
		b, err := entry.Bytes(baseDir)
		if err != nil {
			return nil, fmt.Errorf("payload %d (%s): %w", i, entry.label(), err)
		}
		payloads = append(payloads, b)
	}
	return payloads, nil
}

// Bytes returns the content of the entry
func (e Entry) Bytes(baseDir string) ([]byte, error) {
	sources := 0
	if e.Text != nil {
		sources++
	}
	for _, s := range []string{e.Hex, e.Base64, e.File} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return nil, ErrNoSource
	case sources > 1:
		return nil, ErrMultipleSources
	}

	var content []byte
	var err error

	switch {
	case e.Text != nil:
		content = []byte(*e.Text)
	case e.Hex != "":
		content, err = hex.DecodeString(strings.Join(strings.Fields(e.Hex), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
	case e.Base64 != "":
		content, err = base64.StdEncoding.DecodeString(strings.TrimSpace(e.Base64))
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
	default:
		path := e.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		content, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
	}

	if e.Repeat < 0 {
		return nil, fmt.Errorf("invalid repeat %d", e.Repeat)
	}
	if e.Repeat > 1 {
		content = []byte(strings.Repeat(string(content), e.Repeat))
	}
	return content, nil
}

// ParseArg turns a command line value into a payload. The value may carry one
// of the prefixes hex:, base64: or file:, everything else is taken as text.
func ParseArg(arg string) ([]byte, error) {
	entry := Entry{}
	switch {
	case strings.HasPrefix(arg, "hex:"):
		entry.Hex = strings.TrimPrefix(arg, "hex:")
	case strings.HasPrefix(arg, "base64:"):
		entry.Base64 = strings.TrimPrefix(arg, "base64:")
	case strings.HasPrefix(arg, "file:"):
		entry.File = strings.TrimPrefix(arg, "file:")
	default:
		entry.Text = &arg
	}
	return entry.Bytes("")
}

// ParseArgs applies ParseArg to every value
func ParseArgs(args []string) ([][]byte, error) {
	payloads := make([][]byte, 0, len(args))
	for i, arg := range args {
		b, err := ParseArg(arg)
		if err != nil {
			return nil, fmt.Errorf("payload %d: %w", i, err)
		}
		payloads = append(payloads, b)
	}
	return payloads, nil
}

func (e Entry) label() string {
	if e.Name != "" {
		return e.Name
	}
	return "unnamed"
}
