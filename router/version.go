package router

import (
	"fmt"
	"strings"

	apperrors "rag-gateway/errors"
)

// Version selects which query backend a request executes against. It is
// fixed per request; the router never fails over between versions.
type Version int

const (
	VersionUnknown Version = iota
	// V1Local is the local retrieval+generation pipeline.
	V1Local
	// V2Remote is the remote NodeRAG graph-retrieval service.
	V2Remote
)

func (v Version) String() string {
	switch v {
	case V1Local:
		return "v1"
	case V2Remote:
		return "v2"
	}
	return "unknown"
}

// ParseVersion maps the wire form ("v1"/"v2") to a Version.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1":
		return V1Local, nil
	case "v2":
		return V2Remote, nil
	}
	return VersionUnknown, fmt.Errorf("%w: %q", apperrors.ErrInvalidVersion, s)
}
