package command

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/ranges"
)

var rangesParams = struct {
	File string
}{}

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Severity range tables",
	Long:  "The ranges command is used to inspect and validate severity range tables",
}

var rangesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a range table",
	Long:  "The validate command parses a complete range table file and reports the first configuration error",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := ranges.LoadFile(rangesParams.File)
		if err != nil {
			return err
		}

		metrics := make([]string, 0, len(table))
		for metric := range table {
			metrics = append(metrics, string(metric))
		}
		sort.Strings(metrics)
		for _, metric := range metrics {
			fmt.Printf("%s normal %s\n", metric, table[ranges.MetricType(metric)].NormalRange())
		}
		fmt.Printf("Found %v metrics\n", len(table))
		return nil
	},
}

var rangesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective range table",
	Long:  "The show command prints the default range table with the configured overrides applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return err
		}
		table, err := ranges.NewTable(cfg)
		if err != nil {
			return err
		}

		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(table)
	},
}

func init() {
	rangesValidateCmd.Flags().StringVarP(&rangesParams.File, "file", "f", "", "The path of the range table")
	_ = rangesValidateCmd.MarkFlagRequired("file")

	rangesCmd.AddCommand(rangesValidateCmd)
	rangesCmd.AddCommand(rangesShowCmd)
	rootCmd.AddCommand(rangesCmd)
}
