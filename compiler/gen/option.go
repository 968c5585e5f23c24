package gen

import (
	"errors"
	"path"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/syssam/pgproto/compiler/typemap"
)

// DefaultHeader is the comment placed at the top of every generated file.
const DefaultHeader = "Code generated by pgproto. DO NOT EDIT."

// Config holds the global codegen configuration shared by all generated types.
type Config struct {
	// Target is the directory of the generated code.
	Target string
	// Package is the Go import path of Target. It also names the generated
	// protobuf package.
	Package string
	// Header is the comment placed at the top of generated files.
	Header string
	// DescriptorSet is the path of the combined descriptor set output.
	// No descriptor set is written when empty.
	DescriptorSet string
	// Registry maps native types to wire types. Defaults to typemap.Default().
	Registry *typemap.Registry
	// Workers bounds the number of tables rendered concurrently.
	Workers int
	Logger  *zap.Logger
}

// ProtoPackage returns the protobuf package of the generated IDL files: the
// last element of the Go package path, reduced to a valid identifier.
func (c *Config) ProtoPackage() string {
	var b strings.Builder
	for _, r := range strings.ToLower(path.Base(c.Package)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9' && b.Len() > 0:
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			if b.Len() > 0 {
				b.WriteByte('_')
			}
		}
	}
	if b.Len() == 0 {
		return "pgproto"
	}
	return b.String()
}

// PBPackage returns the import path of the Go package compiled from the
// generated IDL files.
func (c *Config) PBPackage() string { return path.Join(c.Package, "pb") }

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Config) registry() *typemap.Registry {
	if c.Registry == nil {
		c.Registry = typemap.Default()
	}
	return c.Registry
}

// Option configures code generation.
type Option func(*Config) error

// WithHeader sets the file header comment.
// The header is added at the top of each generated file.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithPackage sets the import path of the output directory.
// For example: "github.com/org/project/gen".
func WithPackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("Package", nil, "package cannot be empty")
		}
		c.Package = strings.TrimSuffix(pkg, "/")
		return nil
	}
}

// WithTarget sets the output directory.
// The directory where generated code will be written.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithDescriptorSet sets the file the combined descriptor set is written to.
func WithDescriptorSet(file string) Option {
	return func(c *Config) error {
		if file == "" {
			return NewConfigError("DescriptorSet", nil, "descriptor set path cannot be empty")
		}
		c.DescriptorSet = file
		return nil
	}
}

// WithRegistry sets the type mapping registry.
func WithRegistry(r *typemap.Registry) Option {
	return func(c *Config) error {
		if r == nil {
			return NewConfigError("Registry", nil, "registry cannot be nil")
		}
		c.Registry = r
		return nil
	}
}

// WithWorkers bounds the number of tables rendered concurrently.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// WithLogger sets the generation logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) error {
		c.Logger = log
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with the given options. Target and Package
// are required.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Header: DefaultHeader, Workers: runtime.GOMAXPROCS(0)}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	switch {
	case c.Target == "":
		return nil, NewConfigError("Target", nil, "target directory is required")
	case c.Package == "":
		return nil, NewConfigError("Package", nil, "package is required")
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
