package assembler

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/conneroisu/assemble/internal/errors"
)

// InjectTag marks struct fields a ContainerFactory fills by type. A value of
// "inject,optional" leaves the field unset when nothing resolves.
const InjectTag = "assemble"

var contextInterface = reflect.TypeOf((*context.Context)(nil)).Elem()

// Factory instantiates processor candidates.
type Factory interface {
	Create(ctx context.Context, c Candidate) (Processor, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, c Candidate) (Processor, error)

// Create calls f.
func (f FactoryFunc) Create(ctx context.Context, c Candidate) (Processor, error) {
	return f(ctx, c)
}

// Resolver resolves dependencies by type. *di.ServiceContainer implements it.
type Resolver interface {
	GetByType(t reflect.Type) (interface{}, error)
}

// TaggedResolver lists the services registered under a tag.
type TaggedResolver interface {
	GetByTag(tag string) ([]interface{}, error)
}

// DefaultFactory calls a candidate's constructor when it takes no
// arguments other than a context.Context, and otherwise builds the zero
// value of the type. Pointer types get a newly allocated zero pointee.
type DefaultFactory struct{}

// Create implements Factory.
func (DefaultFactory) Create(ctx context.Context, c Candidate) (Processor, error) {
	if c.Constructor.IsValid() {
		args, err := constructorArgs(ctx, c, nil)
		if err != nil {
			return nil, err
		}
		return callConstructor(c, args)
	}
	return zeroProcessor(c)
}

// ContainerFactory resolves constructor parameters, or fields tagged
// `assemble:"inject"` on zero-value construction, from a Resolver.
type ContainerFactory struct {
	Resolver Resolver
}

// NewContainerFactory creates a factory backed by r.
func NewContainerFactory(r Resolver) *ContainerFactory {
	return &ContainerFactory{Resolver: r}
}

// Create implements Factory.
func (f *ContainerFactory) Create(ctx context.Context, c Candidate) (Processor, error) {
	if c.Constructor.IsValid() {
		args, err := constructorArgs(ctx, c, f.Resolver)
		if err != nil {
			return nil, err
		}
		return callConstructor(c, args)
	}

	v, err := newValue(c)
	if err != nil {
		return nil, err
	}
	if err := f.injectFields(c, v); err != nil {
		return nil, err
	}
	return asProcessor(c, v)
}

func (f *ContainerFactory) injectFields(c Candidate, v reflect.Value) error {
	target := v
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	if target.Kind() != reflect.Struct {
		return nil
	}

	st := target.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup(InjectTag)
		if !ok {
			continue
		}
		parts := strings.Split(tag, ",")
		if parts[0] != "inject" {
			continue
		}
		optional := len(parts) > 1 && parts[1] == "optional"

		if !field.IsExported() {
			return constructionError(errors.ErrCodeUnresolvable, c,
				fmt.Errorf("field %s is tagged for injection but unexported", field.Name))
		}

		dep, err := resolve(f.Resolver, field.Type)
		if err != nil {
			if optional {
				continue
			}
			return constructionError(errors.ErrCodeUnresolvable, c,
				fmt.Errorf("field %s: %w", field.Name, err))
		}
		target.Field(i).Set(dep)
	}
	return nil
}

// constructorArgs builds the argument list for c's constructor. A
// context.Context parameter receives ctx; every other parameter comes from r.
func constructorArgs(ctx context.Context, c Candidate, r Resolver) ([]reflect.Value, error) {
	ft := c.Constructor.Type()
	if ft.IsVariadic() {
		return nil, constructionError(errors.ErrCodeNoConstructor, c,
			fmt.Errorf("variadic constructor %s is not supported", ft))
	}

	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		in := ft.In(i)
		if in == contextInterface {
			args[i] = reflect.ValueOf(&ctx).Elem()
			continue
		}
		if r == nil {
			return nil, constructionError(errors.ErrCodeUnresolvable, c,
				fmt.Errorf("constructor parameter %d (%s) needs a dependency resolver", i, in))
		}
		dep, err := resolve(r, in)
		if err != nil {
			return nil, constructionError(errors.ErrCodeUnresolvable, c,
				fmt.Errorf("constructor parameter %d: %w", i, err))
		}
		args[i] = dep
	}
	return args, nil
}

func resolve(r Resolver, t reflect.Type) (reflect.Value, error) {
	if r == nil {
		return reflect.Value{}, fmt.Errorf("no resolver for %s", t)
	}
	dep, err := r.GetByType(t)
	if err != nil {
		return reflect.Value{}, err
	}
	if dep == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(dep)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("resolved %s is not assignable to %s", v.Type(), t)
	}
	return v, nil
}

func callConstructor(c Candidate, args []reflect.Value) (p Processor, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = constructionError(errors.ErrCodeConstructorFail, c, fmt.Errorf("constructor panicked: %v", r))
		}
	}()

	out := c.Constructor.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, constructionError(errors.ErrCodeConstructorFail, c, out[1].Interface().(error))
	}
	return asProcessor(c, out[0])
}

func zeroProcessor(c Candidate) (Processor, error) {
	v, err := newValue(c)
	if err != nil {
		return nil, err
	}
	return asProcessor(c, v)
}

// newValue allocates the zero value of c.Type.
func newValue(c Candidate) (reflect.Value, error) {
	if c.Type == nil {
		return reflect.Value{}, constructionError(errors.ErrCodeNoConstructor, c,
			fmt.Errorf("candidate has no type"))
	}
	if c.Type.Kind() == reflect.Pointer {
		return reflect.New(c.Type.Elem()), nil
	}
	return reflect.New(c.Type).Elem(), nil
}

func asProcessor(c Candidate, v reflect.Value) (Processor, error) {
	if isNil(v) {
		return nil, constructionError(errors.ErrCodeNilProcessor, c, fmt.Errorf("constructor returned nil"))
	}
	p, ok := v.Interface().(Processor)
	if !ok {
		return nil, constructionError(errors.ErrCodeNoConstructor, c,
			fmt.Errorf("%s does not implement Processor", v.Type()))
	}
	return p, nil
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func constructionError(code string, c Candidate, cause error) error {
	return errors.ErrConstruction(code, c.Module.ID, c.TypeName(), cause)
}
