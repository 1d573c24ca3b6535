package cerr

import (
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

type F map[string]any

type Ctx struct {
	fields []field
}

type field struct {
	key   string
	value any
}

func Field(key string, value any) Ctx {
	return Ctx{}.Field(key, value)
}

func Fields(f F) Ctx {
	return Ctx{}.Fields(f)
}

func Error(msg string) error {
	return Ctx{}.Error(msg)
}

func Wrap(err error) Wrapped {
	return Ctx{}.Wrap(err)
}

func (c Ctx) Field(key string, value any) Ctx {
	fields := make([]field, 0, len(c.fields)+1)
	fields = append(fields, c.fields...)
	fields = append(fields, field{key: key, value: value})
	return Ctx{fields: fields}
}

func (c Ctx) Fields(f F) Ctx {
	next := c
	for key, value := range f {
		next = next.Field(key, value)
	}
	return next
}

func (c Ctx) Error(msg string) error {
	return c.decorate(errors.New(msg))
}

func (c Ctx) Wrap(err error) Wrapped {
	return Wrapped{ctx: c, err: err}
}

func (c Ctx) decorate(err error) error {
	for _, f := range c.fields {
		err = errors.WithDetailf(err, "%s: %v", f.key, f.value)
	}

	return err
}

type Wrapped struct {
	ctx Ctx
	err error
}

func (w Wrapped) Error(msg string) error {
	return w.ctx.decorate(errors.Wrap(w.err, msg))
}

// Log reports the error with all attached field details through apex.
func Log(err error) {
	if err == nil {
		return
	}

	details := errors.GetAllDetails(err)
	if len(details) == 0 {
		log.Error(err.Error())
		return
	}

	log.WithField("error_details", strings.Join(details, ", ")).
		Error(err.Error())
}

func Message(err error) string {
	details := errors.GetAllDetails(err)
	if len(details) == 0 {
		return err.Error()
	}

	return fmt.Sprintf("%s (%s)", err.Error(), strings.Join(details, ", "))
}
