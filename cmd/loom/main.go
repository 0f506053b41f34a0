// Command loom drives the station pipeline: inspect the plan, start a new
// session, resume a checkpointed one, or list known sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/strayline/loom/internal/checkpoint"
	"github.com/strayline/loom/internal/config"
	"github.com/strayline/loom/internal/dag"
	"github.com/strayline/loom/internal/generator"
	"github.com/strayline/loom/internal/logging"
	"github.com/strayline/loom/internal/pipeline"
	"github.com/strayline/loom/internal/station"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	disabledStyle = lipgloss.NewStyle().Faint(true)
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "plan":
		cmdPlan(os.Args[2:])
	case "run":
		cmdRun(os.Args[2:])
	case "resume":
		cmdResume(os.Args[2:])
	case "sessions":
		cmdSessions(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		die("unknown command %q", os.Args[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: loom <command> [flags]

commands:
  plan      print the computed execution order
  run       start a new pipeline session
  resume    continue a checkpointed session (--session, optional --from)
  sessions  list checkpointed sessions`)
}

// env bundles everything a subcommand needs after startup.
type env struct {
	cfg         *config.Config
	logger      *slog.Logger
	closer      io.Closer
	registry    *station.Registry
	descriptors map[station.ID]station.Descriptor
	order       []station.ID
	store       *checkpoint.Store
	gen         generator.Generator
}

func setup(projectDir string) (*env, error) {
	project := projectDir
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	absolute, err := filepath.Abs(project)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitLoomDir(absolute); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(absolute)
	if err != nil {
		return nil, err
	}
	logger, closer, err := logging.New(absolute)
	if err != nil {
		return nil, err
	}

	registry := station.NewRegistry(logger)
	descriptors, err := station.Discover(cfg.StationsDir(), logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	graph := dag.Build(descriptors, logger)
	order, err := graph.Order()
	if err != nil {
		closer.Close()
		return nil, err
	}

	store, err := checkpoint.NewStore(checkpoint.NewRedisKV(cfg.Project.Redis.Addr), cfg.Project.SessionTTL.Std())
	if err != nil {
		closer.Close()
		return nil, err
	}
	gen, err := buildGenerator(cfg.Project.Generator)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &env{
		cfg:         cfg,
		logger:      logger,
		closer:      closer,
		registry:    registry,
		descriptors: descriptors,
		order:       order,
		store:       store,
		gen:         gen,
	}, nil
}

func buildGenerator(cfg config.GeneratorConfig) (generator.Generator, error) {
	switch cfg.Provider {
	case "mock", "":
		return generator.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

func cmdPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	fs.Parse(args)

	e, err := setup(*projectDir)
	if err != nil {
		die("%v", err)
	}
	defer e.closer.Close()

	fmt.Println(headerStyle.Render("execution order"))
	for i, id := range e.order {
		desc := e.descriptors[id]
		deps := renderDeps(desc.DependsOn)
		fmt.Printf("%3d. %s  %s  [%s]%s\n",
			i+1, idStyle.Render(id.String()), desc.Name, desc.Category, deps)
	}
	for _, id := range station.IDsOf(e.descriptors) {
		desc := e.descriptors[id]
		if !desc.Enabled {
			fmt.Println(disabledStyle.Render(fmt.Sprintf("  -  %s  %s  (disabled)", id, desc.Name)))
		}
	}
}

func renderDeps(deps []station.ID) string {
	if len(deps) == 0 {
		return ""
	}
	parts := make([]string, len(deps))
	for i, dep := range deps {
		parts[i] = dep.String()
	}
	return "  after " + strings.Join(parts, ", ")
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	fs.Parse(args)

	e, err := setup(*projectDir)
	if err != nil {
		die("%v", err)
	}
	defer e.closer.Close()

	sessionID := uuid.NewString()
	state := pipeline.NewState(sessionID, nowUTC())
	fmt.Printf("session %s: %d stations\n", sessionID, len(e.order))
	runPipeline(e, e.order, state)
}

func cmdResume(args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	sessionID := fs.String("session", "", "session id to resume")
	from := fs.String("from", "", "re-run from this station id, completed or not")
	fs.Parse(args)

	if strings.TrimSpace(*sessionID) == "" {
		die("--session is required")
	}
	e, err := setup(*projectDir)
	if err != nil {
		die("%v", err)
	}
	defer e.closer.Close()

	var startID *station.ID
	if strings.TrimSpace(*from) != "" {
		id, err := station.ParseID(*from)
		if err != nil {
			die("%v", err)
		}
		startID = &id
	}
	plan, err := e.store.PlanResume(context.Background(), *sessionID, e.order, startID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			die("session %s has no checkpoint", *sessionID)
		}
		die("%v", err)
	}
	if plan.Done() {
		if err := e.store.Save(context.Background(), plan.State); err != nil {
			die("%v", err)
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("session %s: nothing left to run", *sessionID)))
		return
	}
	fmt.Printf("session %s: %d of %d stations remaining\n", *sessionID, len(plan.Remaining), len(e.order))
	runPipeline(e, plan.Remaining, plan.State)
}

func cmdSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	fs.Parse(args)

	e, err := setup(*projectDir)
	if err != nil {
		die("%v", err)
	}
	defer e.closer.Close()

	sessions, err := e.store.Sessions(context.Background())
	if err != nil {
		die("%v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}
	fmt.Println(headerStyle.Render("sessions"))
	for _, s := range sessions {
		status := string(s.Status)
		switch s.Status {
		case pipeline.StatusCompleted:
			status = okStyle.Render(status)
		case pipeline.StatusFailed:
			status = failedStyle.Render(status)
		}
		fmt.Printf("  %s  %s  started %s  %d completed\n",
			s.ID, status, s.StartedAt.Format("2006-01-02 15:04:05"), s.Completed)
	}
}

func runPipeline(e *env, order []station.ID, state *pipeline.State) {
	executor, err := pipeline.NewExecutor(e.registry, e.gen, e.store, e.logger)
	if err != nil {
		die("%v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	final, err := executor.Run(ctx, e.descriptors, order, state)
	switch {
	case err == nil:
		fmt.Println(okStyle.Render(fmt.Sprintf("session %s completed (%d stations)", final.SessionID, len(final.Completed))))
	case final != nil && final.Status == pipeline.StatusInterrupted:
		fmt.Printf("session %s interrupted after %d stations; resume with:\n", final.SessionID, len(final.Completed))
		fmt.Printf("  loom resume --session %s\n", final.SessionID)
	default:
		fmt.Println(failedStyle.Render(fmt.Sprintf("session %s failed: %v", sessionOf(final, state), err)))
		os.Exit(1)
	}
}

func sessionOf(final, fallback *pipeline.State) string {
	if final != nil {
		return final.SessionID
	}
	return fallback.SessionID
}

func nowUTC() time.Time { return time.Now().UTC() }

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "loom: "+format+"\n", args...)
	os.Exit(1)
}
