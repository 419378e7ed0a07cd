// Package media holds the media vocabulary shared by the reel compiler stages.
package media

import (
	"path/filepath"
	"slices"
	"strings"

	"reelbot/config"
)

// Kind classifies an input file. It is resolved once at ingestion.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DetectKind classifies a path by its extension.
func DetectKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == "":
		return KindUnknown
	case slices.Contains(config.VideoExtensions, ext):
		return KindVideo
	case slices.Contains(config.ImageExtensions, ext):
		return KindImage
	default:
		return KindUnknown
	}
}

// NarrationTrack is the voice track every other timing derives from.
type NarrationTrack struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}
