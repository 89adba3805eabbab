package gemini

import "errors"

// ErrEmptyDocument is returned when Generate is called with no content.
var ErrEmptyDocument = errors.New("document content cannot be empty")
