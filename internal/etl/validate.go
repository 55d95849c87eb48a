package etl

import (
	"context"

	"go.uber.org/zap"
)

// Validator checks a day's loaded data and returns a list of findings.
type Validator interface {
	Validate(ctx context.Context, ec *Context) ([]string, error)
}

// ValidateSubprocess is the VALIDATE stage. With no validator configured
// it is a placeholder that marks the day as passed with no findings.
type ValidateSubprocess struct {
	validator Validator
	logger    *zap.Logger
}

func NewValidateSubprocess(validator Validator, logger *zap.Logger) *ValidateSubprocess {
	return &ValidateSubprocess{validator: validator, logger: logger}
}

func (s *ValidateSubprocess) Type() SubprocessType { return SubprocessValidate }

func (s *ValidateSubprocess) ValidateContext(ec *Context) error {
	if !ec.Has(KeyLoadedDataCount) {
		return NewError(KindConfig, SubprocessValidate, ec.CurrentDate(), "loadedDataCount missing from context", nil)
	}
	return nil
}

func (s *ValidateSubprocess) Execute(ctx context.Context, ec *Context) (int, error) {
	if s.validator == nil {
		ec.SetValidationResult(true, []string{})
		return 0, nil
	}

	findings, err := s.validator.Validate(ctx, ec)
	if err != nil {
		return 0, NewError(KindUnknown, SubprocessValidate, ec.CurrentDate(), "validation failed", err)
	}
	ec.SetValidationResult(len(findings) == 0, findings)
	for _, f := range findings {
		s.logger.Warn("validation finding",
			zap.String("date", FormatBusinessDate(ec.CurrentDate())),
			zap.String("detail", f))
	}
	return len(findings), nil
}
