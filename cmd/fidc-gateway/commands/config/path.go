package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfidc/gateway/pkg/config"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetDefaultConfigPath())
	},
}
