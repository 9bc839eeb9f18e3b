package assets

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-feed-importer/pkg/blob"
)

// ErrorKind classifies a failed rehost.
type ErrorKind int

const (
	KindFetch ErrorKind = iota
	KindDecode
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindDecode:
		return "decode"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// AssetError is the typed failure of one reference. The reference is left
// untouched in the body.
type AssetError struct {
	Kind ErrorKind
	Ref  string
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s %q: %v", e.Kind, e.Ref, e.Err)
}
func (e *AssetError) Unwrap() error { return e.Err }

// IsKind reports whether err is an AssetError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var aerr *AssetError
	return errors.As(err, &aerr) && aerr.Kind == kind
}

func classify(ref string, err error) *AssetError {
	var aerr *AssetError
	if errors.As(err, &aerr) {
		return aerr
	}
	kind := KindStorage
	switch {
	case errors.Is(err, blob.ErrNetwork):
		kind = KindFetch
	case errors.Is(err, blob.ErrDecode):
		kind = KindDecode
	}
	return &AssetError{Kind: kind, Ref: ref, Err: err}
}
