package commands

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfidc/gateway/internal/cli/output"
	"github.com/openfidc/gateway/pkg/config"
	"github.com/openfidc/gateway/pkg/gateway/proxy"
)

var routesOutput string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List configured routes",
	Long: `List the routes the gateway would mount with the current
configuration, including their upstreams, required permissions and
timeouts.

Examples:
  # Table output
  fidc-gateway routes

  # Machine-readable output
  fidc-gateway routes --output json`,
	RunE: runRoutes,
}

func init() {
	routesCmd.Flags().StringVarP(&routesOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(routesOutput)
	if err != nil {
		return err
	}
	printer := output.NewPrinter(os.Stdout, format)

	if format != output.FormatTable {
		return printer.Print(cfg.Routes)
	}

	table := output.NewTableData("ID", "PATH", "UPSTREAM", "ACCESS", "PERMISSIONS", "TIMEOUT")
	for _, route := range cfg.Routes {
		access := "validated"
		if route.Public {
			access = "public"
		}

		perms := strings.Join(route.RequiredPermissions, ", ")
		if perms == "" {
			perms = "-"
		}

		timeout := route.Timeout
		if timeout == 0 {
			timeout = proxy.DefaultTimeout
		}

		table.AddRow(route.ID, route.Path, route.Upstream, access, perms, timeout.String())
	}

	printer.Printf("%d route(s) configured\n\n", len(cfg.Routes))
	if err := printer.Print(table); err != nil {
		return err
	}
	printer.Println("\nListener port: " + strconv.Itoa(cfg.Server.Port))
	return nil
}
