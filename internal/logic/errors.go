package logic

import "errors"

// ErrHotReloadUnsupported is returned by ReloadModule on engines whose
// SupportsHotReload reports false.
var ErrHotReloadUnsupported = errors.New("logic: engine does not support hot reload")
