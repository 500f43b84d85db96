// Package enecmder
package enecmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/papercomputeco/ene/cmd/ene/serve"
	versioncmder "github.com/papercomputeco/ene/cmd/version"
)

const eneLongDesc string = `Ene is a conversational companion with long-term memory.

Run the server using:
  ene serve    Run the session and consolidation server`

const eneShortDesc string = "Ene - Conversational Memory"

func NewEneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ene",
		Short: eneShortDesc,
		Long:  eneLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
