package parser

import "errors"

var errMissing = errors.New("element not found")
