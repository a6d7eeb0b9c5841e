// Package gossa lowers Go packages to the operation stream through go/ssa.
package gossa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"dagestimator/internal/core/errors"
	"dagestimator/internal/engine/ir"
)

// Frontend loads the Go module rooted at the given directory.
type Frontend struct {
	// Patterns are go/packages patterns relative to the directory.
	// Defaults to "./...".
	Patterns []string
	// Tests includes test packages.
	Tests bool
}

func (Frontend) Name() string { return "go" }

func (f Frontend) Load(ctx context.Context, dir string) (*ir.Program, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid module directory"), errors.CtxPath, dir)
	}
	if _, err := os.Stat(filepath.Join(absDir, "go.mod")); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "no go.mod in module directory"), errors.CtxPath, absDir)
	}

	// Neutralize workspace and flag interference from the environment.
	env := append(os.Environ(), "GOWORK=off", "GOFLAGS=")
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.LoadAllSyntax | packages.NeedModule,
		Dir:     absDir,
		Env:     env,
		Tests:   f.Tests,
	}
	patterns := f.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "package loading failed"), errors.CtxPath, absDir)
	}
	if len(pkgs) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "no packages matched"), errors.CtxPath, absDir)
	}
	var loadErrs []packages.Error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		loadErrs = append(loadErrs, p.Errors...)
	})
	if len(loadErrs) > 0 {
		msg := fmt.Sprintf("%d package errors, first: %s", len(loadErrs), loadErrs[0].Msg)
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, msg), errors.CtxPath, loadErrs[0].Pos)
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	name := filepath.Base(absDir)
	if m := pkgs[0].Module; m != nil && m.Path != "" {
		name = m.Path
	}
	return Lower(name, ssaPkgs), nil
}
