package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect and repair worker registrations",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers registered on the job broker",
	RunE:  runWorkersList,
}

var workersClearCmd = &cobra.Command{
	Use:   "clear <name>",
	Short: "Force-remove a worker registration",
	Long: `Force-remove a worker registration from the job broker.

Use this when a crashed worker left a registration behind and a restarted
worker under the same name is refused. Clearing a live worker makes its
name claimable; the running process itself is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkersClear,
}

func init() {
	rootCmd.AddCommand(workersCmd)
	workersCmd.AddCommand(workersListCmd)
	workersCmd.AddCommand(workersClearCmd)
}

func runWorkersList(cmd *cobra.Command, args []string) error {
	broker, err := connectBroker(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer broker.Close()

	workers, err := broker.ListWorkers(context.Background())
	if err != nil {
		return err
	}
	if len(workers) == 0 {
		fmt.Println("no workers registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST\tPID\tQUEUE\tSTATE\tLAST BEAT")
	for _, info := range workers {
		state := "dead"
		if info.Alive(broker.HeartbeatTTL()) {
			state = "alive"
		}
		beat := "never"
		if !info.LastBeat.IsZero() {
			beat = fmt.Sprintf("%s ago", time.Since(info.LastBeat).Round(time.Second))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			info.Name, info.Host, info.PID, info.Queue, state, beat)
	}
	return w.Flush()
}

func runWorkersClear(cmd *cobra.Command, args []string) error {
	name := args[0]

	broker, err := connectBroker(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := broker.ClearWorker(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("worker %s cleared\n", name)
	return nil
}
