package psylib

import (
	"path"
	"strings"
)

// ResourceStatus is the lifecycle state of a resource record. A record
// only moves forward: REGISTERED -> DOWNLOADING -> DOWNLOADED or ERROR.
//
// The numeric order is the reduction order: when several statuses are
// reduced to one, the value furthest from DOWNLOADED wins, so a batch
// reads DOWNLOADED only when every member does.
type ResourceStatus int

const (
	// StatusError means a loader failed for this resource.
	StatusError ResourceStatus = iota
	// StatusRegistered means the resource is known but not requested.
	StatusRegistered
	// StatusDownloading means a loader is fetching the resource.
	StatusDownloading
	// StatusDownloaded means the payload is available.
	StatusDownloaded
)

// String returns the status name.
func (s ResourceStatus) String() string {
	switch s {
	case StatusError:
		return "ERROR"
	case StatusRegistered:
		return "REGISTERED"
	case StatusDownloading:
		return "DOWNLOADING"
	case StatusDownloaded:
		return "DOWNLOADED"
	default:
		return "UNKNOWN"
	}
}

// ResourceKind classifies a resource by its content, deciding which
// backend loader fetches it.
type ResourceKind int

const (
	// KindGeneric is any asset fetched as raw bytes (images, video,
	// arbitrary files).
	KindGeneric ResourceKind = iota
	// KindTabular is spreadsheet-like condition data, force-decoded as
	// binary and parsed into rows.
	KindTabular
	// KindAudio is a sound asset. Decoding is the player's concern;
	// the pipeline stores raw bytes.
	KindAudio
	// KindFont is a font asset, stored as raw bytes.
	KindFont
	// KindSurvey is a questionnaire definition fetched via a dedicated
	// remote call rather than a generic byte fetch.
	KindSurvey
)

// String returns the kind name.
func (k ResourceKind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindAudio:
		return "audio"
	case KindFont:
		return "font"
	case KindSurvey:
		return "survey"
	default:
		return "generic"
	}
}

// ResourceRecord is the per-asset bookkeeping entry: where the asset
// lives, how far its acquisition has progressed, and its payload once
// downloaded. Records are created by RegisterResources and mutated only
// by the pipeline's loader callbacks.
type ResourceRecord struct {
	// Name is the unique key callers use to refer to the resource.
	Name string `json:"name"`
	// Path is the resolved location, possibly proxy-rewritten.
	Path string `json:"path"`
	// Kind selects the backend loader.
	Kind ResourceKind `json:"kind"`
	// Status is the current lifecycle state.
	Status ResourceStatus `json:"status"`
	// Data is the opaque payload once Status is DOWNLOADED: []byte for
	// generic/audio/font assets, *TabularData for tabular ones,
	// json.RawMessage for survey models. Nil otherwise.
	Data any `json:"-"`
}

// ResourceEntry is the caller-facing registration request.
type ResourceEntry struct {
	// Name is the unique key for the resource.
	Name string `json:"name"`
	// Path is the asset location: a URL or a local path.
	Path string `json:"path"`
	// Download requests an immediate download after registration.
	Download bool `json:"download,omitempty"`
}

// reduceStatus folds statuses using the total order
// ERROR < REGISTERED < DOWNLOADING < DOWNLOADED. Reducing an empty set
// yields DOWNLOADED, so waiting on no resources resolves immediately.
func reduceStatus(statuses []ResourceStatus) ResourceStatus {
	reduced := StatusDownloaded
	for _, st := range statuses {
		if st < reduced {
			reduced = st
		}
	}
	return reduced
}

// classifyResource inspects the resource name (falling back to its
// path) and returns the backend loader class for it.
func classifyResource(name, location string) ResourceKind {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = strings.ToLower(path.Ext(location))
	}
	switch ext {
	case ".csv", ".tsv", ".xlsx", ".xls", ".ods":
		return KindTabular
	case ".mp3", ".wav", ".ogg", ".m4a", ".flac", ".aac":
		return KindAudio
	case ".ttf", ".otf", ".woff", ".woff2":
		return KindFont
	case ".sid":
		return KindSurvey
	default:
		return KindGeneric
	}
}
