package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wtcops/resyncd/internal/task"
	"github.com/wtcops/resyncd/internal/version"
)

const (
	ParamVersion           = "version"
	ParamNginxReuseVersion = "nginxReuseVersion"
	ParamSkipCheck         = "skipCheck"
)

// ValidationError is returned when the task parameters are rejected
// before a task is created.
type ValidationError struct {
	Param  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid parameter '%s': %s", e.Param, e.Err)
	}

	return fmt.Sprintf("invalid parameter '%s': %s", e.Param, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if the given error is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError

	return errors.As(err, &e)
}

// Args are the parsed and validated task parameters.
type Args struct {
	Version   string
	SkipCheck bool

	// As given by the caller, may be empty
	NginxReuseVersion string
	// Given or derived from Version
	nginxReuseVersion string
}

// Params returns the normalized form of the arguments
// that is stored in the task record.
func (a *Args) Params(kind task.Kind) task.Params {
	p := task.Params{ParamVersion: a.Version}

	switch kind {
	case task.KindUpdateReuse:
		if len(a.NginxReuseVersion) > 0 {
			p[ParamNginxReuseVersion] = a.NginxReuseVersion
		}
	case task.KindFullSync:
		p[ParamSkipCheck] = a.SkipCheck
	}

	return p
}

func parseArgs(kind task.Kind, p task.Params, versionOffset int) (*Args, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	args := Args{}

	if v, err := stringParam(p, ParamVersion); err == nil {
		if len(v) == 0 {
			return nil, &ValidationError{Param: ParamVersion, Reason: "missing required parameter"}
		}
		if _, err := version.Parse(v); err != nil {
			return nil, &ValidationError{Param: ParamVersion, Err: err}
		}
		args.Version = v
	} else {
		return nil, err
	}

	switch kind {
	case task.KindUpdateReuse:
		v, err := stringParam(p, ParamNginxReuseVersion)
		if err != nil {
			return nil, err
		}

		if len(v) > 0 {
			if _, err := version.Parse(v); err != nil {
				return nil, &ValidationError{Param: ParamNginxReuseVersion, Err: err}
			}

			args.NginxReuseVersion = v
			args.nginxReuseVersion = v
		} else {
			derived, err := version.Decrement(args.Version, versionOffset)
			if err != nil {
				return nil, &ValidationError{Param: ParamVersion, Err: err}
			}

			args.nginxReuseVersion = derived
		}
	case task.KindFullSync:
		switch v := p[ParamSkipCheck].(type) {
		case nil:
		case bool:
			args.SkipCheck = v
		default:
			return nil, &ValidationError{Param: ParamSkipCheck, Reason: fmt.Sprintf("boolean expected, got %T", v)}
		}
	}

	return &args, nil
}

func stringParam(p task.Params, name string) (string, error) {
	switch v := p[name].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", &ValidationError{Param: name, Reason: fmt.Sprintf("string expected, got %T", v)}
	}
}
