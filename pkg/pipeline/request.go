package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxQuestions bounds the questions accepted in one request.
const MaxQuestions = 50

// Request is one batch of documents and the questions to answer over them.
type Request struct {
	Documents []string `validate:"required,min=1,dive,nonblank"`
	Questions []string `validate:"required,min=1,dive,nonblank"`
	Options   Options
}

type indexRequest struct {
	Documents []string `validate:"required,min=1,dive,nonblank"`
	Options   Options
}

// Options override the configured defaults for one request. Zero values mean
// "use the default".
type Options struct {
	ChunkSize    int    `validate:"omitempty,min=500,max=2000"`
	ChunkOverlap int    `validate:"omitempty,min=50,max=500"`
	TopK         int    `validate:"omitempty,min=1,max=15"`
	Format       string `validate:"omitempty,oneof=auto pdf docx doc email eml url"`
	// EnableCaching allows reusing an index already built at the configured
	// location. Nil means true.
	EnableCaching *bool
	Timeout       time.Duration `validate:"gte=0"`
}

func (o Options) caching() bool {
	return o.EnableCaching == nil || *o.EnableCaching
}

// InvalidRequestError is returned by Submit before any work is done.
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Err.Error()
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		o := sl.Current().Interface().(Options)
		if o.ChunkSize > 0 && o.ChunkOverlap > 0 && o.ChunkOverlap >= o.ChunkSize {
			sl.ReportError(o.ChunkOverlap, "ChunkOverlap", "ChunkOverlap", "ltchunksize", "")
		}
	}, Options{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(Request)
		if len(r.Questions) > MaxQuestions {
			sl.ReportError(r.Questions, "Questions", "Questions", "max", strconv.Itoa(MaxQuestions))
		}
	}, Request{})
	return v
}

func (p *Pipeline) validateRequest(req Request) error {
	if err := p.validate.Struct(req); err != nil {
		return &InvalidRequestError{Err: describe(err)}
	}
	return nil
}

// describe flattens validator output into one readable error.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), err)
}
