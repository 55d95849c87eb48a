package etl

import "context"

// SubprocessType identifies one of the five ordered daily subprocesses.
type SubprocessType int

const (
	SubprocessExtract SubprocessType = iota
	SubprocessTransform
	SubprocessLoad
	SubprocessValidate
	SubprocessClean
)

func (t SubprocessType) String() string {
	switch t {
	case SubprocessExtract:
		return "EXTRACT"
	case SubprocessTransform:
		return "TRANSFORM"
	case SubprocessLoad:
		return "LOAD"
	case SubprocessValidate:
		return "VALIDATE"
	case SubprocessClean:
		return "CLEAN"
	default:
		return "UNKNOWN"
	}
}

// Subprocess is the uniform contract every daily stage implements.
//
// ValidateContext must check that every context key the stage reads is
// present and fail with a ConfigError when one is missing. Execute returns
// the number of records the stage handled; it writes exactly its declared
// output keys and never touches keys owned by other stages.
type Subprocess interface {
	Type() SubprocessType
	ValidateContext(ec *Context) error
	Execute(ctx context.Context, ec *Context) (int, error)
}
