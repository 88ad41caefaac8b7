package pob

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mephi42/gopob/internal/pob"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ItemFile is the YAML document listing candidate items.
type ItemFile struct {
	Items []Candidate `yaml:"items"`
}

// Candidate is one item to fit. Name labels it in reports and defaults to
// the first line of Text.
type Candidate struct {
	Name string `yaml:"name,omitempty"`
	Text string `yaml:"text"`
}

// Label returns the report label of c.
func (c Candidate) Label() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	first, _, _ := strings.Cut(strings.TrimSpace(c.Text), "\n")
	return strings.TrimSpace(first)
}

// LoadItemFile reads candidates from a YAML file.
func LoadItemFile(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var file ItemFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	if len(file.Items) == 0 {
		return nil, errors.New("items file lists no items")
	}
	for i, item := range file.Items {
		if strings.TrimSpace(item.Text) == "" {
			return nil, fmt.Errorf("item %d has no text", i)
		}
	}
	return file.Items, nil
}

type fitOptions struct {
	buildFile string
	stored    string
	account   string
	character string
	items     string
}

func newFitCommand(opts *RootOptions) *cobra.Command {
	fitOpts := &fitOptions{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Compare candidate items against a build",
		Long: `Evaluate each candidate item in every slot it fits and report how
the build's stats change. The build comes from --build-file, --stored or
--account with --character.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, opts, fitOpts)
		},
	}
	cmd.Flags().StringVar(&fitOpts.buildFile, "build-file", "", "build XML file")
	cmd.Flags().StringVar(&fitOpts.stored, "stored", "", "name of a stored build")
	cmd.Flags().StringVar(&fitOpts.account, "account", "", "account to download the build from")
	cmd.Flags().StringVar(&fitOpts.character, "character", "", "character to download")
	cmd.Flags().StringVar(&fitOpts.items, "items", "", "YAML file of candidate items")
	cmd.MarkFlagsMutuallyExclusive("build-file", "stored", "account")
	cmd.MarkFlagsRequiredTogether("account", "character")
	_ = cmd.MarkFlagRequired("items")
	return cmd
}

func runFit(cmd *cobra.Command, opts *RootOptions, fitOpts *fitOptions) error {
	candidates, err := LoadItemFile(fitOpts.items)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	engine, err := opts.openEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := loadFitBuild(cmd, opts, fitOpts, engine); err != nil {
		return err
	}
	if opts.Store != "" {
		if err := opts.storeBuild(ctx, engine); err != nil {
			return err
		}
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	results, err := engine.Fit(ctx, texts)
	if err != nil {
		return err
	}
	return WriteReport(cmd.OutOrStdout(), opts.Format, candidates, results)
}

func loadFitBuild(cmd *cobra.Command, opts *RootOptions, fitOpts *fitOptions, engine *pob.Engine) error {
	ctx := cmd.Context()
	switch {
	case fitOpts.buildFile != "":
		return engine.LoadFile(fitOpts.buildFile)
	case fitOpts.stored != "":
		store, err := opts.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		build, err := store.Get(ctx, fitOpts.stored)
		if err != nil {
			return err
		}
		return engine.Load(build.XML)
	case fitOpts.account != "":
		return downloadBuild(cmd, engine, fitOpts.account, fitOpts.character)
	default:
		return errors.New("one of --build-file, --stored or --account is required")
	}
}
