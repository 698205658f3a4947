package mask

import "github.com/pkg/errors"

const (
	TypeUnstructured = "unstructured"
	TypeChannel      = "channel"
	TypeFilter       = "filter"
	TypeBlock        = "block"
)

// LoadCreator resolves a serialized mask type to a Creator. "channel" groups by
// axis 1 (input channels), "filter" by axis 0 (output filters), "block" uses
// the given 2-element tile shape.
func LoadCreator(kind string, block []int) (Creator, error) {
	switch kind {
	case "", TypeUnstructured:
		return Unstructured{}, nil
	case TypeChannel:
		return NewDimension(1)
	case TypeFilter:
		return NewDimension(0)
	case TypeBlock:
		return NewBlock(block)
	default:
		return nil, errors.Wrapf(ErrConfig, "unrecognized mask type: %s", kind)
	}
}
