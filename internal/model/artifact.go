package model

import (
	"mime"
	"path/filepath"
)

// DefaultMediaType is used for artifacts whose extension is not recognized.
const DefaultMediaType = "application/octet-stream"

// Artifact is a file discovered in the output area after a run. It is a
// read-only descriptor: the backing file belongs to the execution's scratch
// directory lifecycle and the descriptor becomes invalid once that directory
// is cleaned up.
type Artifact struct {
	Name      string
	Path      string // Absolute path of the backing file.
	MediaType string
	SizeBytes int64
}

// NewArtifact builds an artifact descriptor for a file, inferring the media
// type from the file name.
func NewArtifact(name, path string, sizeBytes int64) Artifact {
	return Artifact{
		Name:      name,
		Path:      path,
		MediaType: MediaTypeByExtension(name),
		SizeBytes: sizeBytes,
	}
}

// MediaTypeByExtension infers a media type purely from the file extension,
// falling back to a generic binary type when unrecognized. Content is never
// inspected.
func MediaTypeByExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return DefaultMediaType
	}

	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return DefaultMediaType
	}

	return mt
}
