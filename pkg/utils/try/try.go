package try

// Fataler is anything with a Fatal method, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either wraps a (value, error) pair.
type Either[T any] interface {
	// Get returns the wrapped pair as is.
	Get() (T, error)

	// OrFatal returns the value, or calls ftl.Fatal with the wrapped error.
	//
	// If ftl has a Helper method (like *testing.T), it is called first.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value, or the given fallback on error.
	OrDefault(T) T
}

// To wraps a function result into an Either.
func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

func (t tryOk[T]) Get() (T, error) {
	return t.value, nil
}

func (t tryOk[T]) OrFatal(Fataler) T {
	return t.value
}

func (t tryOk[T]) OrDefault(T) T {
	return t.value
}

type helper interface {
	Helper()
}

type tryNg[T any] struct {
	err error
}

func (t tryNg[T]) Get() (T, error) {
	return *new(T), t.err
}

func (t tryNg[T]) OrFatal(ftl Fataler) T {
	if h, ok := ftl.(helper); ok {
		h.Helper()
	}
	ftl.Fatal(t.err)
	return *new(T)
}

func (t tryNg[T]) OrDefault(def T) T {
	return def
}
