package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shaderland/backend/shared"
	"shaderland/frontend/settings"
)

func newGenerateCmd(h *envHolder) *cobra.Command {
	var (
		model     string
		parent    string
		saveModel bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a shader from a text prompt",
		Long: `Generate a shader by calling the selected model once and storing the result.

The creator id and default model come from the client settings. With --parent
the new shader is a remix and joins the parent's lineage.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := h.env
			s, err := settings.Load(e.Settings, nil)
			if err != nil {
				return err
			}

			if model == "" {
				model = s.SelectedModel
			} else if saveModel {
				if err := settings.SetModel(e.Settings, model); err != nil {
					return err
				}
			}

			req := shared.GenerateRequest{
				Prompt:    strings.Join(args, " "),
				Model:     model,
				CreatorID: s.UserID,
			}
			if parent != "" {
				req.ParentShader = &shared.Shader{ID: parent}
			}

			shader, err := e.Generator.Generate(cmd.Context(), req)
			if err != nil {
				_, code, message := shared.ClassifyError(err)
				if s.DebugMode {
					return fmt.Errorf("%s (%s): %w", message, code, err)
				}
				return fmt.Errorf("%s (%s)", message, code)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(shader)
			}
			fmt.Fprintf(out, "id:       %s\n", shader.ID)
			fmt.Fprintf(out, "lineage:  %s\n", shader.LineageID)
			if shader.ParentID != "" {
				fmt.Fprintf(out, "parent:   %s\n", shader.ParentID)
			}
			fmt.Fprintf(out, "model:    %s\n", model)
			fmt.Fprintf(out, "controls: %s\n", strings.Join(shader.JSON.Keys(), ", "))
			for _, w := range shared.InspectHTML(shader.HTML).Warnings() {
				fmt.Fprintf(out, "warning:  %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model id (default: the saved selection)")
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "remix the shader with this id")
	cmd.Flags().BoolVar(&saveModel, "save-model", false, "remember --model for later runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored shader as JSON")
	return cmd
}
