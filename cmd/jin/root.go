package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/config"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/lock"
	"github.com/dabstractor/jin/internal/logging"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
)

var rootCmd = &cobra.Command{
	Use:           "jin",
	Short:         "Layered configuration version control",
	Long:          "jin composes machine, mode, scope, and project configuration layers into a single workspace view, tracking each layer's history independently.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(initCmd, addCmd, commitCmd, modeCmd, modesCmd, scopeCmd, scopesCmd,
		applyCmd, resetCmd, resolveCmd, mvCmd, rmCmd, repairCmd, contextCmd, layersCmd, listCmd)
}

// env bundles everything a command needs to talk to the engine, opened
// once per invocation.
type env struct {
	root   string
	cfg    *config.Config
	store  objstore.Store
	ctx    project.Context
	logger interface {
		Info(msg string, args ...any)
		Error(msg string, args ...any)
	}
}

func openEnv() (*env, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	store, err := objstore.Open(cfg.JinDir)
	if err != nil {
		return nil, err
	}
	ctx, err := project.Load(root)
	if err != nil {
		return nil, err
	}
	return &env{root: root, cfg: cfg, store: store, ctx: ctx, logger: logging.New(cfg)}, nil
}

// projectRoot walks up from the current directory looking for a .jin
// control directory, the same way a VCS locates its repository root.
func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("%w: getwd: %v", jinerr.ErrIO, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".jin")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", jinerr.ErrNotInitialized
		}
		dir = parent
	}
}

// withLock runs fn while holding the per-project advisory lock.
func (e *env) withLock(fn func() error) error {
	unlock, err := lock.Lock(e.cfg.JinDir)
	if err != nil {
		return err
	}
	defer unlock.Unlock()
	return fn()
}

// layerFlags reads the standard layer-routing flags shared by staging,
// reset, and mv commands.
func layerFlags(cmd *cobra.Command) layer.Flags {
	mode, _ := cmd.Flags().GetBool("mode")
	scope, _ := cmd.Flags().GetBool("scope")
	proj, _ := cmd.Flags().GetBool("project")
	global, _ := cmd.Flags().GetBool("global")
	local, _ := cmd.Flags().GetBool("local")
	return layer.Flags{Mode: mode, Scope: scope, Project: proj, Global: global, Local: local}
}

// resolveLayer reads the layer flags off cmd and resolves them against the
// current project context with layer.Resolve, the single routing rule the
// layer-targeting commands share.
func resolveLayer(cmd *cobra.Command, e *env) (layer.Kind, error) {
	return layer.Resolve(layerFlags(cmd), e.ctx)
}

func addLayerFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("mode", false, "route to the active mode's layer")
	cmd.Flags().Bool("scope", false, "route to the active scope's layer")
	cmd.Flags().Bool("project", false, "route to the active project's layer (requires --mode)")
	cmd.Flags().Bool("global", false, "route to the global-base layer")
	cmd.Flags().Bool("local", false, "route to the user-local layer")
}
