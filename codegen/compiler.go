package codegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/tools/go/packages"
)

// ErrCompile means generated wrappers failed to compile.
var ErrCompile = errors.New("generated wrappers do not compile")

// Compiler checks that a directory of generated wrappers builds.
type Compiler interface {
	Compile(ctx context.Context, dir string) error
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, dir string) error

func (fn CompilerFunc) Compile(ctx context.Context, dir string) error { return fn(ctx, dir) }

// PackagesCompiler type-checks the generated package with go/packages,
// which runs the go command in dir.
type PackagesCompiler struct {
	// Env, if set, is the environment of the go command.
	Env []string
	// BuildFlags are passed to the go command.
	BuildFlags []string
}

func (c PackagesCompiler) Compile(ctx context.Context, dir string) error {
	cfg := &packages.Config{
		Context:    ctx,
		Dir:        dir,
		Env:        c.Env,
		BuildFlags: c.BuildFlags,
		Mode:       packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return fmt.Errorf("loading %s: %w", dir, err)
	}

	var result *multierror.Error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			result = multierror.Append(result, e)
		}
	})
	if result.ErrorOrNil() != nil {
		return fmt.Errorf("%w: %s: %w", ErrCompile, dir, result)
	}
	return nil
}
