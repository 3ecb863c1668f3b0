package main

import (
	"encoding/json"

	"sirius/pkg/excel"

	"github.com/spf13/cobra"
)

func excelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excel",
		Short: "Read Excel workbooks",
	}

	dump := &cobra.Command{
		Use:   "dump [path] [sheet]",
		Short: "Print a sheet as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyValue, _ := cmd.Flags().GetBool("key-value")

			var data any
			var err error
			if keyValue {
				data, err = excel.GetKeyValuePair(args[0], args[1])
			} else {
				data, err = excel.GetExcelData(args[0], args[1])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
	dump.Flags().Bool("key-value", false, "Read a two-column sheet as key-value pairs")

	cmd.AddCommand(dump)
	return cmd
}
