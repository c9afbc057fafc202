package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"formfill/internal/di"
	"formfill/internal/domain/entity"

	"github.com/spf13/cobra"
)

type messageSender interface {
	Send(ctx context.Context, name entity.MessageName, body json.RawMessage) entity.Response
}

func newRunCmd(load func() di.Config) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a browser and pick forms to fill from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if url != "" {
				cfg.StartURL = url
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			c, err := startPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			serverErr := make(chan error, 1)
			go func() { serverErr <- c.Server.ListenAndServe(ctx) }()

			loopErr := consoleLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), c.Bus)
			cancel()
			if err := <-serverErr; err != nil {
				return err
			}
			return loopErr
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to open first (default $FORMFILL_START_URL)")
	return cmd
}

func newServeCmd(load func() di.Config) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open a browser and accept messages over the HTTP control API only",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if url != "" {
				cfg.StartURL = url
			}

			c, err := startPipeline(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "control API listening on http://%s\n", cfg.ControlAddr)
			return c.Server.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to open first (default $FORMFILL_START_URL)")
	return cmd
}

func startPipeline(ctx context.Context, cfg di.Config) (*di.Container, error) {
	c, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.StartURL != "" {
		if err := c.Page.Navigate(ctx, cfg.StartURL); err != nil {
			c.Close()
			return nil, fmt.Errorf("open %s: %w", cfg.StartURL, err)
		}
	}
	c.Logger.Info("Pipeline ready", "url", cfg.StartURL, "control_addr", cfg.ControlAddr)
	return c, nil
}

const consoleHelp = `commands:
  s, <enter>  pick an element to fill
  c           cancel the picker
  status      show selection state and last episode
  q           quit
`

// consoleLoop reads commands line by line and forwards them to the message bus
// until q, end of input, or ctx is done.
func consoleLoop(ctx context.Context, in io.Reader, out io.Writer, bus messageSender) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprint(out, consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			var name entity.MessageName
			switch strings.TrimSpace(strings.ToLower(line)) {
			case "", "s":
				name = entity.MessageStartElementSelection
			case "c":
				name = entity.MessageCancelElementSelection
			case "status":
				name = entity.MessageStatus
			case "q", "quit", "exit":
				return nil
			case "h", "help", "?":
				fmt.Fprint(out, consoleHelp)
				continue
			default:
				fmt.Fprintf(out, "unknown command %q\n", line)
				continue
			}

			resp := bus.Send(ctx, name, nil)
			if err := printResponse(out, resp); err != nil {
				return err
			}
		}
	}
}

func printResponse(out io.Writer, resp entity.Response) error {
	if !resp.Success {
		fmt.Fprintf(out, "error: %s\n", resp.Error)
		return nil
	}
	if len(resp.Data) == 0 {
		return nil
	}

	var pretty any
	if err := json.Unmarshal(resp.Data, &pretty); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
