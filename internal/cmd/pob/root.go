package pob

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/mephi42/gopob/internal/netshim"
	platformcmd "github.com/mephi42/gopob/internal/platform/cmd"
	"github.com/mephi42/gopob/internal/pob"
	"github.com/mephi42/gopob/internal/services/library/storage"
	"github.com/mephi42/gopob/internal/services/library/storage/sqlite"
	"github.com/spf13/cobra"
)

// ValidFormats lists the fit report formats.
var ValidFormats = []string{"text", "yaml"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config
	Store  string
	Out    string
	Format string

	// transport replaces the HTTP transport in tests.
	transport netshim.Transport
}

// NewRootCommand creates the root command. cfg supplies flag defaults.
func NewRootCommand(cfg Config) *cobra.Command {
	return newRootCommand(&RootOptions{Config: cfg})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pob",
		Short: "Drive Path of Building headlessly",
		Long: `Load, import or download builds into a headless Path of Building,
keep them in a local library and compare candidate items against them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			// The engine may change the working directory before the library is opened.
			if opts.Library != "" {
				library, err := filepath.Abs(opts.Library)
				if err != nil {
					return fmt.Errorf("resolve library path: %w", err)
				}
				opts.Library = library
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.EngineDir, "engine-dir", opts.EngineDir, "Path of Building checkout")
	flags.StringVar(&opts.LuaDir, "lua-dir", opts.LuaDir, "extra Lua module directory")
	flags.StringVar(&opts.Library, "library", opts.Library, "build library database")
	flags.DurationVar(&opts.HTTPTimeout, "http-timeout", opts.HTTPTimeout, "timeout for each download")
	flags.BoolVar(&opts.Chdir, "chdir", opts.Chdir, "run with the engine's src directory as working directory")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "verbose output")
	flags.StringVar(&opts.Store, "store", "", "store the resulting build in the library under this name")
	flags.StringVar(&opts.Out, "out", "", "write the resulting build XML to this file")
	flags.StringVar(&opts.Format, "format", "text", "fit report format (text|yaml)")

	cmd.AddCommand(newDownloadCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newLoadCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newBuildsCommand(opts))
	cmd.AddCommand(newFitCommand(opts))
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger(cmd *cobra.Command) *log.Logger {
	if !o.Verbose {
		return nil
	}
	return platformcmd.NewLogger(cmd.ErrOrStderr(), platformcmd.ServicePOB)
}

func (o *RootOptions) openEngine(ctx context.Context, cmd *cobra.Command) (*pob.Engine, error) {
	if strings.TrimSpace(o.EngineDir) == "" {
		return nil, fmt.Errorf("engine dir is required")
	}
	return pob.Open(ctx, pob.Config{
		EngineDir:   o.EngineDir,
		LuaDir:      o.LuaDir,
		Chdir:       o.Chdir,
		Transport:   o.transport,
		HTTPTimeout: o.HTTPTimeout,
		Logger:      o.logger(cmd),
		Verbose:     o.Verbose,
	})
}

func (o *RootOptions) openStore(ctx context.Context) (*sqlite.Store, error) {
	return sqlite.Open(ctx, o.Library)
}

// finish writes the engine's current build wherever the flags ask and prints
// its build code.
func (o *RootOptions) finish(ctx context.Context, cmd *cobra.Command, engine *pob.Engine) error {
	if o.Out != "" {
		if err := engine.SaveFile(o.Out); err != nil {
			return err
		}
	}
	if o.Store != "" {
		if err := o.storeBuild(ctx, engine); err != nil {
			return err
		}
	}
	code, err := engine.Export()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
	return err
}

func (o *RootOptions) storeBuild(ctx context.Context, engine *pob.Engine) error {
	xml, err := engine.Save()
	if err != nil {
		return err
	}
	store, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Put(ctx, storage.StoredBuild{Name: o.Store, XML: xml})
}

func readInput(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
