package documents

import "errors"

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNoText        = errors.New("no selected docs with extracted text")
	ErrNoParsedText  = errors.New("no parsed text, extract first")
	ErrEmptyQuestion = errors.New("type a question first")
	// ErrPresignUnsupported is returned when the object store cannot presign uploads.
	ErrPresignUnsupported = errors.New("direct uploads are not supported by this store")
)
