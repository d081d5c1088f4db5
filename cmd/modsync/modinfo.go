package main

import (
	"fmt"

	"github.com/jamesainslie/modsync/pkg/modsync/modinfo"
	"github.com/spf13/cobra"
)

var modinfoCmd = &cobra.Command{
	Use:   "modinfo <jar>...",
	Short: "Print mod id and version from jar descriptors",
	Long:  `Read META-INF/neoforge.mods.toml or META-INF/mods.toml from each jar.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runModInfo,
}

func init() {
	rootCmd.AddCommand(modinfoCmd)
}

func runModInfo(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		info, err := modinfo.Read(path)
		if err != nil {
			printError("%s: %v", path, err)
			failed++
			continue
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", path, info.ModID, info.Version, info.DisplayName)
	}
	if failed > 0 {
		return errProblems
	}
	return nil
}
