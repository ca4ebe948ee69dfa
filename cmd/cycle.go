package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one automation cycle and exit",
	Run:   RunCycle,
}

var cycleTestTradeID uint

func init() {
	cycleCmd.Flags().UintVar(&cycleTestTradeID, "test-trade", 0, "run a relaxed test trade for this automation id instead of a full cycle")
}

func RunCycle(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	defer appDep.Close()

	services, err := appDep.NewServices(ctx)
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}

	var result interface{}
	if cycleTestTradeID != 0 {
		result, err = services.SchedulerService.TestTrade(ctx, cycleTestTradeID)
	} else {
		result, err = services.SchedulerService.RunCycleNow(ctx)
	}
	if err != nil {
		log.Fatalf("Cycle failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render cycle result: %v", err)
	}
	fmt.Println(string(out))
}
