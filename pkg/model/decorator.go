package model

// Decorator adjusts a Type before it is compiled into a form, for example to
// hide sections a group may not read.
type Decorator interface {
	Decorate(*Type) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*Type) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(t *Type) error {
	return fn(t)
}
