package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"formfill/internal/di"
	"formfill/internal/domain/entity"
	"formfill/internal/usecase/settings"

	"github.com/spf13/cobra"
)

// withSettings opens the settings store for the duration of fn.
func withSettings(ctx context.Context, load func() di.Config, fn func(svc *settings.Service) error) error {
	c, err := di.NewSettingsContainer(ctx, load())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c.Settings)
}

func newKeysCmd(load func() di.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
	}

	var provider string
	var selectIt bool
	add := &cobra.Command{
		Use:   "add NAME SECRET",
		Short: "Save an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				key := entity.APIKey{Name: args[0], Provider: entity.Provider(provider), APIKey: args[1]}
				if err := svc.SaveAPIKey(cmd.Context(), key); err != nil {
					return err
				}
				if selectIt {
					if err := svc.SelectAPIKey(cmd.Context(), key.Name); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", key.Name, key.Provider)
				return nil
			})
		},
	}
	add.Flags().StringVar(&provider, "provider", string(entity.ProviderOpenAI), "anthropic, openai or google")
	add.Flags().BoolVar(&selectIt, "select", false, "use this key for its provider")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved keys with masked secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				keys, err := svc.ListAPIKeys(cmd.Context())
				if err != nil {
					return err
				}
				selected := make(map[string]bool)
				for _, p := range entity.Providers {
					if k, err := svc.SelectedAPIKey(cmd.Context(), p); err == nil {
						selected[k.Name] = true
					}
				}
				return printTable(cmd.OutOrStdout(), []string{"NAME", "PROVIDER", "KEY", "SELECTED"}, func(row func(...any)) {
					for _, k := range keys {
						row(k.Name, k.Provider, settings.MaskAPIKey(k.APIKey), mark(selected[k.Name]))
					}
				})
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				return svc.DeleteAPIKey(cmd.Context(), args[0])
			})
		},
	}

	sel := &cobra.Command{
		Use:   "select NAME",
		Short: "Use a key for its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				return svc.SelectAPIKey(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(add, list, del, sel)
	return cmd
}

func newPromptsCmd(load func() di.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage fill instructions",
	}

	var selectIt, update bool
	add := &cobra.Command{
		Use:   "add NAME TEXT",
		Short: "Save an instruction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				var err error
				if update {
					err = svc.UpdatePrompt(cmd.Context(), args[0], args[0], args[1])
				} else {
					err = svc.SavePrompt(cmd.Context(), entity.Prompt{Name: args[0], Prompt: args[1]})
				}
				if err != nil {
					return err
				}
				if selectIt {
					return svc.SelectPrompt(cmd.Context(), args[0])
				}
				return nil
			})
		},
	}
	add.Flags().BoolVar(&selectIt, "select", false, "make this the active instruction")
	add.Flags().BoolVar(&update, "update", false, "replace the text of an existing instruction")

	var rename string
	edit := &cobra.Command{
		Use:   "edit NAME TEXT",
		Short: "Change the text of an instruction, optionally renaming it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newName := args[0]
			if rename != "" {
				newName = rename
			}
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				return svc.UpdatePrompt(cmd.Context(), args[0], newName, args[1])
			})
		},
	}
	edit.Flags().StringVar(&rename, "rename", "", "new name for the instruction")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved instructions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				prompts, err := svc.ListPrompts(cmd.Context())
				if err != nil {
					return err
				}
				active := ""
				if p, err := svc.SelectedPrompt(cmd.Context()); err == nil {
					active = p.Name
				}
				return printTable(cmd.OutOrStdout(), []string{"NAME", "SELECTED", "PROMPT"}, func(row func(...any)) {
					for _, p := range prompts {
						row(p.Name, mark(p.Name == active), p.Prompt)
					}
				})
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				return svc.DeletePrompt(cmd.Context(), args[0])
			})
		},
	}

	sel := &cobra.Command{
		Use:   "select NAME",
		Short: "Make an instruction active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				return svc.SelectPrompt(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(add, edit, list, del, sel)
	return cmd
}

func newModelCmd(load func() di.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show or choose the completion model",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				active := ""
				if m, err := svc.SelectedModel(cmd.Context()); err == nil {
					active = m.Version
				}
				return printTable(cmd.OutOrStdout(), []string{"VERSION", "PROVIDER", "NAME", "SELECTED"}, func(row func(...any)) {
					for _, m := range settings.Catalog {
						row(m.Version, m.Provider, m.DisplayName, mark(m.Version == active))
					}
				})
			})
		},
	}

	sel := &cobra.Command{
		Use:   "select VERSION",
		Short: "Choose the model used for new episodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), load, func(svc *settings.Service) error {
				return svc.SelectModel(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(list, sel)
	return cmd
}

func printTable(out io.Writer, header []string, rows func(row func(...any))) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	line := func(cells ...any) {
		for i, c := range cells {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, c)
		}
		fmt.Fprintln(w)
	}

	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	line(headerCells...)
	rows(line)
	return w.Flush()
}

func mark(ok bool) string {
	if ok {
		return "*"
	}
	return ""
}
