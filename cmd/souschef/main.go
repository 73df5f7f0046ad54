package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/meera/souschef/internal/actuator"
	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/gateway"
	"github.com/meera/souschef/internal/governance"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/observability"
	"github.com/meera/souschef/internal/oracle"
	"github.com/meera/souschef/internal/orchestrator"
	"github.com/meera/souschef/internal/store"
	"github.com/meera/souschef/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("Warning: %v, running with defaults", err)
		cfg = config.Default()
	}

	registry := command.Default()
	state := kitchen.NewStore(kitchen.DefaultState())
	logger := observability.NewLogger()

	robot := actuator.NewClient(cfg.Robot.Addr, registry,
		actuator.WithSimulation(cfg.Robot.Simulation),
		actuator.WithMaxRetries(cfg.Robot.MaxRetries),
	)
	defer robot.Close()
	if robot.Simulated() {
		log.Println("[ SIM ] Actuator bridge in simulation mode, no robot traffic")
	}

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	oc := oracle.NewClient(llm,
		oracle.WithStreaming(pCfg.Streaming),
		oracle.WithLogger(logger),
	)
	prompts := oracle.NewPromptManager(cfg.App.PromptsDir)
	planner := oracle.NewPlanner(oc, registry, prompts,
		oracle.WithStateKeys(state.ValidKeys),
		oracle.WithStatusProbe(robot.Status),
	)
	validator := oracle.NewValidator(oc, registry, prompts,
		oracle.WithRevisionStateKeys(state.ValidKeys),
	)

	journal, err := store.NewJournal(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer journal.Close()

	loopOpts := []orchestrator.Option{
		orchestrator.WithJournal(journal),
		orchestrator.WithActions(cfg.Robot.ActionsToExecute),
	}
	if !cfg.Robot.UseAngleStop {
		loopOpts = append(loopOpts, orchestrator.WithStopMode(actuator.StopTime))
	}
	if cfg.StrictMode {
		loopOpts = append(loopOpts, orchestrator.WithGuard(governance.NewPreconditionGuard()))
	}
	loop := orchestrator.New(planner, validator, robot, state, loopOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var messengers []gateway.Messenger

	console := gateway.NewConsoleGateway(os.Stdin, observability.NewTermWriter(), loop)
	messengers = append(messengers, console)
	go func() {
		if err := console.Start(); err != nil {
			log.Printf("Console gateway: %v", err)
		}
	}()

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, loop)
		if err != nil {
			log.Fatal(err)
		}
		messengers = append(messengers, tg)
		go func() {
			if err := tg.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}()
		defer tg.Stop()
	}

	go loop.Run(ctx)
	go pumpEvents(ctx, loop, logger, messengers)

	// Live resource dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] KITCHEN SECURED. GOODBYE.\033[0m")
}

// pumpEvents is the single consumer of the loop's observation channel. It
// feeds the JSON logger, the live status line and the gateways.
func pumpEvents(ctx context.Context, loop *orchestrator.Loop, logger *observability.Logger, messengers []gateway.Messenger) {
	notify := func(text string) {
		for _, m := range messengers {
			if err := m.Notify(text); err != nil {
				log.Printf("Notify: %v", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-loop.Events():
			switch evt.Type {
			case orchestrator.EventPhaseChanged:
				logger.LogPhase(evt.PlanID, string(evt.Phase))
				observability.SetStatus(modeFor(evt.Phase), "")
			case orchestrator.EventPlanApproved:
				logger.LogPhase(evt.PlanID, "plan_approved")
				if items := loop.Checklist(); len(items) > 0 {
					notify(fmt.Sprintf("Plan approved, executing %d steps.", len(items)))
				}
			case orchestrator.EventStepStarted:
				if info, ok := evt.Data.(orchestrator.StepInfo); ok {
					logger.LogStep(evt.PlanID, info.Index, info.Description, "started")
					observability.SetStatus(observability.ModeExecuting, info.Description)
				}
			case orchestrator.EventStepCompleted:
				if info, ok := evt.Data.(orchestrator.StepInfo); ok {
					logger.LogStep(evt.PlanID, info.Index, info.Description, "completed")
					notify(fmt.Sprintf("[%d/%d] %s", info.Done, info.Total, info.Description))
				}
			case orchestrator.EventFailure:
				if f, ok := evt.Data.(orchestrator.Failure); ok {
					logger.LogError(evt.PlanID, f.Kind, f.Offending)
				}
			case orchestrator.EventTaskCompleted:
				logger.LogPhase(evt.PlanID, "task_completed")
				observability.SetStatus(observability.ModeIdle, "")
				notify("Task complete. The kitchen is all yours.")
			case orchestrator.EventTaskAborted:
				logger.LogPhase(evt.PlanID, "task_aborted")
				observability.SetStatus(observability.ModeIdle, "")
				if f, ok := evt.Data.(orchestrator.Failure); ok {
					notify(fmt.Sprintf("Task aborted (%s). Kitchen state is preserved.", f.Kind))
				} else {
					notify("Task aborted. Kitchen state is preserved.")
				}
			}
		}
	}
}

func modeFor(phase orchestrator.Phase) observability.Mode {
	switch phase {
	case orchestrator.PhasePlanning:
		return observability.ModePlanning
	case orchestrator.PhaseValidating:
		return observability.ModeValidating
	case orchestrator.PhaseExecuting:
		return observability.ModeExecuting
	default:
		return observability.ModeIdle
	}
}
