package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crewhub/internal/depgraph"
	"crewhub/internal/store"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var (
	taskProjectFlag     string
	taskDescriptionFlag string
	taskAssignFlag      string
	taskPriorityFlag    int
	taskBlockedByFlag   []string
	taskStatusFlag      string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if taskProjectFlag == "" {
			return fmt.Errorf("--project is required")
		}
		return withStore(func(ctx context.Context, st *store.Store) error {
			task := &store.Task{
				ProjectID:   taskProjectFlag,
				Title:       args[0],
				Description: taskDescriptionFlag,
				AssignedTo:  taskAssignFlag,
				Priority:    taskPriorityFlag,
				BlockedBy:   taskBlockedByFlag,
			}
			task.Status = depgraph.InitialStatus(ctx, st, task)
			if err := st.CreateTask(ctx, task); err != nil {
				return err
			}
			fmt.Printf("created task %s (%s, %s)\n", task.Title, task.ID, task.Status)
			return nil
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if taskProjectFlag == "" {
			return fmt.Errorf("--project is required")
		}
		return withStore(func(ctx context.Context, st *store.Store) error {
			tasks, err := st.ListTasks(ctx, store.TaskFilter{
				ProjectID: taskProjectFlag,
				Status:    store.TaskStatus(taskStatusFlag),
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIO\tASSIGNED\tBLOCKED BY")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					t.ID, t.Title, t.Status, t.Priority, t.AssignedTo, strings.Join(t.BlockedBy, ","))
			}
			return w.Flush()
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{taskCreateCmd, taskListCmd} {
		c.Flags().StringVar(&taskProjectFlag, "project", "", "project id")
	}
	taskCreateCmd.Flags().StringVar(&taskDescriptionFlag, "description", "", "task description")
	taskCreateCmd.Flags().StringVar(&taskAssignFlag, "assign", "", "agent id to assign")
	taskCreateCmd.Flags().IntVar(&taskPriorityFlag, "priority", 0, "priority (higher runs first)")
	taskCreateCmd.Flags().StringSliceVar(&taskBlockedByFlag, "blocked-by", nil, "task ids that must complete first")
	taskListCmd.Flags().StringVar(&taskStatusFlag, "status", "", "filter by status")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
}
