package main

import (
	"github.com/spf13/cobra"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Start an interactive session bound to the workflow controller",
		Long: `Start an interactive session. Commands are read one per line:

  select <path>   choose a PDF (file-picker channel)
  drop <path>     choose a PDF (drag-drop channel)
  upload          submit the selected file for extraction
  export          forward the extraction result to the export service
  wait            block until the outstanding request finishes
  dismiss         discard the extraction result, keep the file
  reset           clear everything
  show            print the current state
  help            list commands
  quit            leave the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			s := newSession(rt.controller, out, shouldColorize(out))
			defer s.close()
			return s.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}
