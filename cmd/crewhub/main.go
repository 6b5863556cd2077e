package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "crewhub",
	Short: "Task execution coordinator for a team of AI agents",
	Long: `crewhub coordinates a virtual team of AI agents: it schedules tasks with
dependencies between them, drives an external code-generation CLI per agent,
and streams live output to monitors over HTTP and WebSocket.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crewhub version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crewhub %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
