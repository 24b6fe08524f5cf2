package main // Entry point package

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conference-cms",
	Short: "Conference site content management API",
	Long: `Backend for the conference website: accounts, events and publications.

	conference-cms serve
	conference-cms migrate up
	conference-cms user create --email root@example.com --password secret1 --role super_admin
`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
