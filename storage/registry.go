package storage

import (
	"fmt"
	"slices"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry holds one storage per entity message. Storages are registered
// explicitly, usually by the Register function of a generated table package.
type Registry struct {
	mu       sync.RWMutex
	storages map[protoreflect.FullName]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{storages: make(map[protoreflect.FullName]any)}
}

func nameOf[E proto.Message]() protoreflect.FullName {
	var zero E
	return zero.ProtoReflect().Descriptor().FullName()
}

// Provide registers s as the storage of E. Registering a second storage for
// the same message is an error.
func Provide[E proto.Message](r *Registry, s Storage[E]) error {
	if s == nil {
		return fmt.Errorf("pgproto/storage: nil storage for %s", nameOf[E]())
	}
	name := nameOf[E]()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storages[name]; ok {
		return fmt.Errorf("pgproto/storage: storage for %s already registered", name)
	}
	r.storages[name] = s
	return nil
}

// MustProvide is like Provide but panics on error.
func MustProvide[E proto.Message](r *Registry, s Storage[E]) {
	if err := Provide(r, s); err != nil {
		panic(err)
	}
}

// Lookup returns the storage registered for E.
func Lookup[E proto.Message](r *Registry) (Storage[E], error) {
	name := nameOf[E]()
	r.mu.RLock()
	v, ok := r.storages[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pgproto/storage: no storage registered for %s", name)
	}
	s, ok := v.(Storage[E])
	if !ok {
		return nil, fmt.Errorf("pgproto/storage: storage for %s has type %T", name, v)
	}
	return s, nil
}

// Names returns the registered message names in sorted order.
func (r *Registry) Names() []protoreflect.FullName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]protoreflect.FullName, 0, len(r.storages))
	for n := range r.storages {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
