package engine

import "errors"

// errAllCategoriesFailed indicates every cleanup category failed in
// one pass.
var errAllCategoriesFailed = errors.New("engine: all cleanup categories failed")
