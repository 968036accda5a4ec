package persist

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/modeltree/internal/state"
)

// schema validates hydrated data against a CUE constraint.
type schema struct {
	ctx *cue.Context
	val cue.Value
}

func compileSchema(src string) (*schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", formatCUEError(err))
	}
	return &schema{ctx: ctx, val: v}, nil
}

// validate checks obj against the schema. Only errors are reported;
// incomplete optional fields are fine.
func (s *schema) validate(obj state.Object) error {
	data := s.ctx.Encode(obj)
	if err := data.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := s.val.Unify(data).Validate(); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first CUE error, which carries the path of the
// offending field.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errs[0]
}
