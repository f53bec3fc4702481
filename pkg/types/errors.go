package types

import "errors"

// ErrUnsupportedLanguage is returned when no parser handles a language
var ErrUnsupportedLanguage = errors.New("unsupported language")
