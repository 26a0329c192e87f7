package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shaderland/backend/shared"
	"shaderland/frontend/settings"
)

func newGetCmd(h *envHolder) *cobra.Command {
	var htmlOnly bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored shader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shader, err := h.env.Store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if htmlOnly {
				_, err := fmt.Fprintln(out, shader.HTML)
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(shader)
		},
	}
	cmd.Flags().BoolVar(&htmlOnly, "html", false, "print only the HTML document")
	return cmd
}

func newRecentCmd(h *envHolder) *cobra.Command {
	var (
		mine  bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest shaders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := shared.RecentFilter{Limit: limit}
			if mine {
				s, err := settings.Load(h.env.Settings, nil)
				if err != nil {
					return err
				}
				filter.CreatorID = s.UserID
			}

			shaders, err := h.env.Store.Recent(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tLINEAGE\tPROMPT")
			for i := range shaders {
				s := &shaders[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Local().Format(time.DateTime), s.LineageID, truncate(s.Prompt(), 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only shaders created with this client's creator id")
	cmd.Flags().IntVarP(&limit, "limit", "n", shared.DefaultRecentLimit, "number of shaders")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
