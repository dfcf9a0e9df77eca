package sim

import "errors"

// Configuration errors are fatal and returned from Load/Update before any observation runs.
var (
	// ErrUnknownEffectClass is returned when a configuration record names an unregistered class.
	ErrUnknownEffectClass = errors.New("unknown effect class")
	// ErrMissingParameter is returned when a required configuration value cannot be resolved.
	ErrMissingParameter = errors.New("missing required parameter")
	// ErrNoDetectorList is returned when no detector-setup effect defines image plane geometry.
	ErrNoDetectorList = errors.New("no DetectorList effects found")
	// ErrStageMismatch is returned when an effect is placed in a stage its type cannot serve.
	ErrStageMismatch = errors.New("effect does not support stage")
	// ErrInvalidZOrder is returned for z-order values outside every known band.
	ErrInvalidZOrder = errors.New("invalid z_order")
	// ErrDuplicateEffect is returned when an optical element already holds an effect of that name.
	ErrDuplicateEffect = errors.New("duplicate effect name")
)

// Lookup and state errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrNotLoaded   = errors.New("optical train not loaded")
	ErrNotObserved = errors.New("optical train has not observed a source")
)
