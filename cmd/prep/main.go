package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"
	"tabprep/internal/config"
	"tabprep/internal/container"
	"tabprep/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.Code(err), err)
		os.Exit(1)
	}
}

// cli carries the container shared by every subcommand of one invocation
type cli struct {
	out       io.Writer
	errOut    io.Writer
	container *container.Container
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "prep",
		Short: "Profile, plan and transform tabular datasets",
		Long: `prep inspects csv, tsv, xlsx and json tables, proposes a preprocessing
plan (imputation, one-hot encoding, scaling) and applies it.

Without DATABASE_URL datasets live only for the current invocation, so
commands accept a file path wherever a dataset id is expected and import
it first.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.container == nil {
				return nil
			}
			return c.container.Shutdown(cmd.Context())
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.AddCommand(
		c.newImportCmd(),
		c.newListCmd(),
		c.newProfileCmd(),
		c.newRecommendCmd(),
		c.newExecuteCmd(),
		c.newApplyCmd(),
	)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	c.container, err = container.New(cfg)
	if err != nil {
		return err
	}
	c.container.Logger.SetOutput(c.errOut)

	if cfg.Database.Enabled() {
		db, err := container.Connect(cfg.Database)
		if err != nil {
			return err
		}
		if err := c.container.InitWithDatabase(cmd.Context(), db); err != nil {
			db.Close()
			return err
		}
	}
	return nil
}

// resolve imports ref when it names a local file, otherwise treats it as a dataset id
func (c *cli) resolve(ctx context.Context, ref string) (core.ID, error) {
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		return "", errors.InvalidInput(fmt.Sprintf("%s is a directory, not a dataset file", ref))
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		ds, err := c.container.Service.Import(ctx, ref)
		if err != nil {
			return "", err
		}
		return ds.ID, nil
	}
	id, err := core.ParseID(ref)
	if err != nil {
		return "", errors.WithCode(errors.CodeInvalidInput, err)
	}
	return id, nil
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Register a csv, tsv, xlsx or json file as a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.container.Service.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(ds)
		},
	}
}

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored datasets and their versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets, err := c.container.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(datasets)
		},
	}
}

func (c *cli) newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [dataset]",
		Short: "Classify columns and report missing values, outliers and summary stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			profiles, err := c.container.Service.Profile(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.print(profiles)
		},
	}
}

func (c *cli) newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend [dataset]",
		Short: "Print the recommended transformation plan",
		Long: `Print the recommended plan in the plan exchange format: a JSON object
keyed by column name. Edit it and pass it back with execute --plan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			profiles, err := c.container.Service.Profile(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.print(c.container.Service.Recommend(profiles))
		},
	}
}

func (c *cli) newExecuteCmd() *cobra.Command {
	var planFile string
	var persist string
	var output string

	cmd := &cobra.Command{
		Use:   "execute [dataset]",
		Short: "Run a plan file against a dataset",
		Long: `Execute merges the plan file onto the recommended plan and runs it.
Columns or fields the file leaves out keep the recommendation, so the
output of recommend can be edited down to just the changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := preprocess.ParsePersistMode(persist); err != nil {
				return err
			}
			data, err := os.ReadFile(planFile)
			if err != nil {
				return errors.Wrapf(err, "failed to read plan file %s", planFile)
			}
			override, err := preprocess.ParseOverride(data)
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}

			ctx := cmd.Context()
			id, err := c.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			_, plan, err := c.container.Service.PlanFor(ctx, id, override)
			if err != nil {
				return err
			}
			result, err := c.container.Service.Execute(ctx, id, plan)
			if err != nil {
				return err
			}
			handle := dataset.Handle{ID: result.SourceID, Version: result.SourceVersion}
			outcome, err := c.container.Service.Persist(ctx, result, persist, handle)
			if err != nil {
				return err
			}
			if output != "" {
				if err := c.writeTable(output, result.Table); err != nil {
					return err
				}
			}
			return c.print(map[string]interface{}{
				"result":  result,
				"outcome": outcome,
				"preview": result.Preview(c.container.Config.Preview.Rows),
			})
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "Plan file in the plan exchange format")
	cmd.Flags().StringVar(&persist, "persist", "preview", "Persist mode: preview, versioned or overwrite")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the transformed table to this file")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func (c *cli) newApplyCmd() *cobra.Command {
	var overrideFile string
	var persist string
	var output string

	cmd := &cobra.Command{
		Use:   "apply [dataset]",
		Short: "Profile, recommend, merge overrides, execute and persist in one step",
		Long: `Apply runs the whole preprocessing request. An override file uses the
plan exchange format; fields it gives replace the recommendation, fields
it leaves out keep it.

Example: prep apply sales.csv --override fixes.json --persist versioned`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override preprocess.PlanOverride
			if overrideFile != "" {
				data, err := os.ReadFile(overrideFile)
				if err != nil {
					return errors.Wrap(err, "failed to read override file")
				}
				if override, err = preprocess.ParseOverride(data); err != nil {
					return errors.WithCode(errors.CodeInvalidInput, err)
				}
			}

			ctx := cmd.Context()
			id, err := c.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			applied, err := c.container.Service.Apply(ctx, id, override, persist)
			if err != nil {
				return err
			}
			if output != "" {
				if err := c.writeTable(output, applied.Result.Table); err != nil {
					return err
				}
			}
			return c.print(applied)
		},
	}

	cmd.Flags().StringVar(&overrideFile, "override", "", "Plan override file")
	cmd.Flags().StringVar(&persist, "persist", "preview", "Persist mode: preview, versioned or overwrite")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the transformed table to this file")
	return cmd
}

func (c *cli) writeTable(path string, table *dataset.Table) error {
	format, err := dataset.FormatForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer f.Close()

	if err := c.container.Codec.Encode(f, format, table); err != nil {
		return err
	}
	return f.Close()
}
