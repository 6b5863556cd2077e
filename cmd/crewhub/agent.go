package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crewhub/internal/store"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
}

var (
	agentProjectFlag string
	agentRoleFlag    string
	agentModelFlag   string
)

var agentCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if agentProjectFlag == "" {
			return fmt.Errorf("--project is required")
		}
		return withStore(func(ctx context.Context, st *store.Store) error {
			agent := &store.Agent{
				ProjectID: agentProjectFlag,
				Name:      args[0],
				Role:      agentRoleFlag,
				Model:     agentModelFlag,
			}
			if err := st.CreateAgent(ctx, agent); err != nil {
				return err
			}
			fmt.Printf("created agent %s (%s)\n", agent.Name, agent.ID)
			return nil
		})
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents in a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if agentProjectFlag == "" {
			return fmt.Errorf("--project is required")
		}
		return withStore(func(ctx context.Context, st *store.Store) error {
			agents, err := st.ListAgents(ctx, agentProjectFlag)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tSTATUS\tMODEL")
			for _, a := range agents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Role, a.Status, a.Model)
			}
			return w.Flush()
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{agentCreateCmd, agentListCmd} {
		c.Flags().StringVar(&agentProjectFlag, "project", "", "project id")
	}
	agentCreateCmd.Flags().StringVar(&agentRoleFlag, "role", "developer", "agent role (pm, developer, qa, coach)")
	agentCreateCmd.Flags().StringVar(&agentModelFlag, "model", "", "model override for this agent")

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentListCmd)
}
