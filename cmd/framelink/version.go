package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the version of this command.
var Version = "dev build"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use: "version",
	Run: version,
}

func version(cmd *cobra.Command, args []string) {
	fmt.Printf("Framelink %s\n", Version)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fmt.Printf("  %s %s/%s\n", info.GoVersion, runtime.GOOS, runtime.GOARCH)
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			fmt.Printf("  %s %s\n", setting.Key, setting.Value)
		}
	}
}
