package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shaderland/frontend/bridge"
)

// screenshotter is implemented by sandboxes that can capture a frame.
type screenshotter interface {
	Screenshot() ([]byte, error)
}

func newPreviewCmd(h *envHolder) *cobra.Command {
	var (
		sets    []string
		outPath string
		wait    time.Duration
		frame   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Render a shader headlessly and save a screenshot",
		Long: `Load a stored shader in a headless browser, apply control edits and write
a PNG screenshot.

  shaderland preview abc123 --set speed=2.5 --set color=#00ffcc --out frame.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := h.env
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			shader, err := e.Store.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			edits, err := parseSets(sets)
			if err != nil {
				return err
			}

			br, err := e.Browser(ctx)
			if err != nil {
				return fmt.Errorf("start browser: %w", err)
			}
			defer br.Close()

			b := bridge.New(br, bridge.Options{
				Logger: e.Logger,
				OnStateChange: func(s bridge.State, err error) {
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "renderer %s: %v\n", s, err)
					}
				},
			})
			defer b.Close()

			if _, err := b.Bind(shader.JSON); err != nil {
				return fmt.Errorf("controls: %w", err)
			}
			for _, ed := range edits {
				if err := b.SetString(ed.name, ed.value); err != nil {
					return err
				}
			}
			if err := b.Load(shader.HTML); err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			state, err := b.Wait(waitCtx)
			if err != nil {
				return err
			}
			if state != bridge.StateReady {
				return errors.New("renderer did not become ready")
			}

			// let the settle push land and a few frames draw
			select {
			case <-time.After(frame):
			case <-ctx.Done():
				return ctx.Err()
			}

			shot, ok := b.Sandbox().(screenshotter)
			if !ok {
				return errors.New("renderer cannot take screenshots")
			}
			png, err := shot.Screenshot()
			if err != nil {
				return fmt.Errorf("screenshot: %w", err)
			}
			if err := os.WriteFile(outPath, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(png))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "control edit as name=value (repeatable)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "preview.png", "screenshot path")
	cmd.Flags().DurationVar(&wait, "timeout", 20*time.Second, "how long to wait for the renderer")
	cmd.Flags().DurationVar(&frame, "frame-delay", 500*time.Millisecond, "time to let frames render before capture")
	return cmd
}

type controlEdit struct {
	name  string
	value string
}

func parseSets(sets []string) ([]controlEdit, error) {
	edits := make([]controlEdit, 0, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want name=value", s)
		}
		edits = append(edits, controlEdit{name: strings.TrimSpace(name), value: value})
	}
	return edits, nil
}
