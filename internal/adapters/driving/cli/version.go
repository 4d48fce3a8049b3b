package cli

import "github.com/spf13/cobra"

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version",
	Annotations: map[string]string{skipServices: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("mailmirror %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
