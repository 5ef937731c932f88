package config

import "errors"

// ErrConfig is the sentinel wrapped by every unit-file validation failure,
// matching the ConfigError kind of the error taxonomy.
var ErrConfig = errors.New("config error")
