package util

import "errors"

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrInvalidChunkSize  = errors.New("chunk size must be positive")
	ErrDocumentRead      = errors.New("document read failed")
	ErrNoExtractableText = errors.New("no extractable text found in document")

	ErrBackend          = errors.New("backend call failed")
	ErrParse            = errors.New("response did not match expected shape")
	ErrMissingAnswerTag = errors.New("parsed response missing <answer> tags")
	ErrEmptyResult      = errors.New("no usable records after retries")
)
