package pob

import (
	"fmt"
	"time"

	"github.com/mephi42/gopob/internal/pob"
	"github.com/spf13/cobra"
)

func newDownloadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download ACCOUNT CHARACTER",
		Short: "Download a character from pathofexile.com",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := opts.openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := downloadBuild(cmd, engine, args[0], args[1]); err != nil {
				return err
			}
			return opts.finish(ctx, cmd, engine)
		},
	}
}

func downloadBuild(cmd *cobra.Command, engine *pob.Engine, account, character string) error {
	if err := engine.Download(cmd.Context(), account, character); err != nil {
		return err
	}
	return engine.AutoselectMainSkill()
}

func newImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import CODE",
		Short: "Import a build code (- reads it from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			engine, err := opts.openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.Import(code); err != nil {
				return err
			}
			return opts.finish(ctx, cmd, engine)
		},
	}
}

func newLoadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load PATH",
		Short: "Load a build XML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := opts.openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.LoadFile(args[0]); err != nil {
				return err
			}
			return opts.finish(ctx, cmd, engine)
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export NAME",
		Short: "Print the build code of a stored build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			build, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			engine, err := opts.openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.Load(build.XML); err != nil {
				return err
			}
			return opts.finish(ctx, cmd, engine)
		},
	}
}

func newBuildsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "builds",
		Short: "List stored builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			builds, err := store.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, build := range builds {
				if _, err := fmt.Fprintf(out, "%s\t%s\n", build.Name, build.UpdatedAt.Format(time.RFC3339)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
