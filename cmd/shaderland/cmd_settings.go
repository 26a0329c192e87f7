package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"shaderland/frontend/settings"
)

func newSettingsCmd(h *envHolder) *cobra.Command {
	var (
		model string
		debug string
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the client settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := h.env.Settings
			if model != "" {
				if err := settings.SetModel(store, model); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("debug") {
				on := debug == "true" || debug == "on" || debug == "1"
				if err := settings.SetDebugMode(store, on); err != nil {
					return err
				}
			}

			s, err := settings.Load(store, nil)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "select the default model")
	cmd.Flags().StringVar(&debug, "debug", "", "turn debug mode on or off")
	return cmd
}
