package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/warranty-activator/internal/config"
	"github.com/sweeney/warranty-activator/internal/logic"
	"github.com/sweeney/warranty-activator/internal/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the persisted counter and exit",
	Long: `Print the persisted active time and activation flag. With the bolt
backend this fails while the daemon holds the database open.`,
	RunE: runState,
}

func runState(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load counter: %w", err)
	}
	printCounter(cmd.OutOrStdout(), c, cfg.Activation.Threshold)
	return nil
}

func printCounter(w io.Writer, c store.Counter, threshold time.Duration) {
	fmt.Fprintf(w, "accumulated_ms: %d\n", c.AccumulatedMs)
	switch d := logic.Evaluate(c.AccumulatedMs, threshold.Milliseconds()); {
	case c.Activated:
		fmt.Fprintf(w, "status: %s\n", logic.StatusActivated)
	case d.Crossed:
		fmt.Fprintln(w, "status: threshold reached, activation pending")
	default:
		fmt.Fprintf(w, "status: %s\n", d.Progress)
	}
	fmt.Fprintf(w, "activated: %t\n", c.Activated)
}
