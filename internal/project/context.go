// Package project implements the Project Context component: the small
// persisted record of which mode and scope are currently active, and which
// project name the workspace belongs to. Nearly every layer-routing
// decision in the engine reads this record before it does anything else.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/dabstractor/jin/internal/atomicfile"
	"github.com/dabstractor/jin/internal/jinerr"
)

// Context is the active-selection record persisted at .jin/context.
// ActiveMode and ActiveScope are nil when no mode/scope is active.
// ActiveProject is never empty once a project has been initialized.
type Context struct {
	ActiveMode    *string `toml:"active_mode,omitempty"`
	ActiveScope   *string `toml:"active_scope,omitempty"`
	ActiveProject string  `toml:"active_project"`
}

// RelPath is the project-root-relative location of the context file.
const RelPath = ".jin/context"

// Path returns the absolute context file path under root.
func Path(root string) string {
	return filepath.Join(root, RelPath)
}

// Load reads and decodes the context file rooted at root. It returns
// jinerr.ErrNotInitialized if the file does not exist.
func Load(root string) (Context, error) {
	var ctx Context
	path := Path(root)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, fmt.Errorf("%w: %s", jinerr.ErrNotInitialized, path)
		}
		return ctx, fmt.Errorf("%w: read context: %v", jinerr.ErrIO, err)
	}

	if err := toml.Unmarshal(data, &ctx); err != nil {
		return ctx, fmt.Errorf("%w: decode context: %v", jinerr.ErrIO, err)
	}
	return ctx, nil
}

// Save atomically writes ctx to the context file rooted at root.
func Save(root string, ctx Context) error {
	buf, err := toml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("%w: encode context: %v", jinerr.ErrIO, err)
	}
	if err := atomicfile.Write(Path(root), buf, 0o644); err != nil {
		return fmt.Errorf("%w: %v", jinerr.ErrIO, err)
	}
	return nil
}

// Init creates a fresh context for a newly initialized project. It fails
// with jinerr.ErrAlreadyInitialized if a context file is already present.
func Init(root, projectName string) (Context, error) {
	if _, err := os.Stat(Path(root)); err == nil {
		return Context{}, fmt.Errorf("%w: %s", jinerr.ErrAlreadyInitialized, Path(root))
	} else if !os.IsNotExist(err) {
		return Context{}, fmt.Errorf("%w: stat context: %v", jinerr.ErrIO, err)
	}

	ctx := Context{ActiveProject: projectName}
	if err := Save(root, ctx); err != nil {
		return Context{}, err
	}
	return ctx, nil
}

// SetMode sets or clears (name == "") the active mode and persists the
// result.
func (c *Context) SetMode(root, name string) error {
	if name == "" {
		c.ActiveMode = nil
	} else {
		c.ActiveMode = &name
	}
	return Save(root, *c)
}

// SetScope sets or clears (name == "") the active scope and persists the
// result.
func (c *Context) SetScope(root, name string) error {
	if name == "" {
		c.ActiveScope = nil
	} else {
		c.ActiveScope = &name
	}
	return Save(root, *c)
}
