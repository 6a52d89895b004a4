package transcode

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-tono/audioerr"
)

// Source yields the raw bytes of an audio asset. File paths, uploaded bytes
// and embedded data URLs all go through the same decode path afterwards.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads an audio file from disk
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, audioerr.NewDecodeError(s.Path, "failed to read audio file", err)
	}
	return data, nil
}

// BytesSource wraps bytes that are already in memory (uploads, recordings)
type BytesSource struct {
	Label string
	Data  []byte
}

func (s BytesSource) Name() string { return s.Label }

func (s BytesSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Data, nil
}

// DataURLSource decodes an RFC 2397 data URL such as
// "data:audio/wav;base64,UklGR..."
type DataURLSource struct {
	Label string
	URL   string
}

func (s DataURLSource) Name() string { return s.Label }

func (s DataURLSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, data, err := ParseDataURL(s.URL)
	if err != nil {
		return nil, audioerr.NewDecodeError(s.Label, "invalid data URL", err)
	}
	return data, nil
}

// ParseDataURL splits a data URL into its media type and payload
func ParseDataURL(raw string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return "", nil, fmt.Errorf("missing data: scheme")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("missing ',' separator")
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta, isBase64 = m, true
	}
	mediaType = meta
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop the padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
		return mediaType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("unescaping payload: %w", err)
	}
	return mediaType, []byte(unescaped), nil
}

// SourceFor picks a Source for a CLI-style argument: data URLs are decoded
// in place, anything else is a file path
func SourceFor(arg string) Source {
	if strings.HasPrefix(arg, "data:") {
		return DataURLSource{Label: "data-url", URL: arg}
	}
	return FileSource{Path: arg}
}
