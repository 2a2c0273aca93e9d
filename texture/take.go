package texture

// Owned holds a device handle that has exactly one owner. The handle is
// extracted once, when it is handed to its destroy call.
type Owned[T any] struct {
	value T
	held  bool
}

func Own[T any](value T) Owned[T] {
	return Owned[T]{value: value, held: true}
}

// Peek returns the handle without giving up ownership.
func (o *Owned[T]) Peek() T {
	return o.value
}

func (o *Owned[T]) Held() bool {
	return o.held
}

// Take moves the handle out of o. Taking twice is a double destroy in the
// making and panics.
func Take[T any](o *Owned[T]) T {
	if !o.held {
		panic("texture: handle taken twice")
	}
	value := o.value
	var zero T
	o.value = zero
	o.held = false
	return value
}
