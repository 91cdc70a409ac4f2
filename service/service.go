// Package service describes services: named method sets that may extend any
// number of parent services.
//
// The effective method set of a service is its own methods plus every method of
// every ancestor, flattened once when the service is declared:
//
//	SharedService { get_struct }     EchoService { echo }
//	           \                      /
//	            ChildService { operation }
//	  effective: get_struct, echo, operation
//
// Two different methods reaching the same name is a configuration error.
// The same method reached along two paths (a diamond) is not.
package service

import (
	"mini-thrift/rpcerr"
	"slices"

	"github.com/samber/lo"
)

// Service is an immutable service schema.
type Service struct {
	Name    string
	Methods []*MethodSpec // own methods
	Parents []*Service

	table  map[string]*MethodSpec
	owners map[string]string
}

// New declares a service and flattens its method table.
func New(name string, parents []*Service, methods ...*MethodSpec) (*Service, error) {
	s := &Service{
		Name:    name,
		Methods: methods,
		Parents: parents,
		table:   make(map[string]*MethodSpec),
		owners:  make(map[string]string),
	}
	if dups := lo.FindDuplicates(lo.Map(methods, func(m *MethodSpec, _ int) string { return m.Name })); len(dups) > 0 {
		return nil, rpcerr.WrapErrMethodCollision(dups[0], name, name)
	}
	for _, m := range methods {
		s.table[m.Name] = m
		s.owners[m.Name] = name
	}
	for _, parent := range parents {
		for _, mname := range parent.MethodNames() {
			m := parent.table[mname]
			if existing, ok := s.table[mname]; ok {
				if existing != m {
					return nil, rpcerr.WrapErrMethodCollision(mname, s.owners[mname], parent.owners[mname])
				}
				continue
			}
			s.table[mname] = m
			s.owners[mname] = parent.owners[mname]
		}
	}
	return s, nil
}

// MustNew is New for package-level declarations; it panics on error.
func MustNew(name string, parents []*Service, methods ...*MethodSpec) *Service {
	s, err := New(name, parents, methods...)
	if err != nil {
		panic(err)
	}
	return s
}

// Compose declares a service made only of its parents' methods.
func Compose(name string, parents ...*Service) (*Service, error) {
	return New(name, parents)
}

// Method looks a method up in the effective method set. Names are case-sensitive.
func (s *Service) Method(name string) (*MethodSpec, bool) {
	m, ok := s.table[name]
	return m, ok
}

// Owner returns the name of the service that declares the method.
func (s *Service) Owner(name string) string { return s.owners[name] }

// MethodNames returns the effective method names, sorted.
func (s *Service) MethodNames() []string {
	names := lo.Keys(s.table)
	slices.Sort(names)
	return names
}

// Flatten returns a copy of the effective method table.
func (s *Service) Flatten() map[string]*MethodSpec {
	return lo.Assign(s.table)
}
