package constants

import "errors"

// Discovery errors. They abort a conversion before any mutation.
var (
	ErrNotEmbeddable       = errors.New("item type is not a block")
	ErrTypeNotFound        = errors.New("item type not found")
	ErrFieldNotFound       = errors.New("field not found")
	ErrUnexpectedFieldType = errors.New("field is not a block container")
)

var (
	ErrKeyExhausted    = errors.New("could not find a free api key")
	ErrNoBaseURL       = errors.New("base url not set")
	ErrNoToken         = errors.New("api token not set")
	ErrDependencyCycle = errors.New("field dependency cycle detected")
	ErrNotFound        = errors.New("not found")
	ErrInvalidDocument = errors.New("invalid structured text document")
)
