/*
main.go - Command-line entry point of the workforce planner

SUBCOMMANDS:
  solve     Solve an instance file and print the schedule
  generate  Write a random instance file
  serve     Run the HTTP API

EXIT CODES (solve):
  0  OPTIMAL, or TIME_LIMIT with a schedule
  1  invalid instance, infeasible, engine error, or no schedule found
  2  usage error

EXAMPLES:
  planner generate -skills 3 -staff 4 -jobs 4 -horizon 10 -seed 7 -out inst.json
  planner solve -instance inst.json -time-limit 10s
  planner serve -config planner.yaml -addr :9090

SEE ALSO:
  - serve.go: HTTP server startup and shutdown
  - config/config.go: configuration file
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/warp/workforce-planner/config"
	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
	"github.com/warp/workforce-planner/planner"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "solve":
		return solveCmd(ctx, args[1:], stdout, stderr)
	case "generate":
		return generateCmd(args[1:], stdout, stderr)
	case "serve":
		return serveCmd(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: planner <solve|generate|serve> [flags]")
}

// =============================================================================
// SOLVE
// =============================================================================

func solveCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("instance", "", "instance file (JSON)")
	cfgPath := fs.String("config", "", "configuration file (YAML)")
	timeLimit := fs.Duration("time-limit", 0, "engine time limit (default from config)")
	oneTask := fs.Bool("one-task-per-day", false, "at most one assignment per staff member and day")
	noMask := fs.Bool("keep-unrequired", false, "do not mask assignments of skills a job does not require")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *path == "" {
		fmt.Fprintln(stderr, "solve: -instance is required")
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "solve: %v\n", err)
		return exitFailure
	}
	opts := planner.Options{
		Formulation: formulation.Options{
			MaskUnrequiredSkills: cfg.Solver.MaskUnrequiredSkills && !*noMask,
			OneTaskPerDay:        cfg.Solver.OneTaskPerDay || *oneTask,
		},
		TimeLimit: cfg.Solver.TimeLimit,
	}
	if *timeLimit > 0 {
		opts.TimeLimit = *timeLimit
	}
	bnb := mip.NewBranchAndBound()
	bnb.NodeLimit = cfg.Solver.NodeLimit
	opts.Engine = bnb

	inst, err := instance.Load(*path)
	if err != nil {
		fmt.Fprintf(stderr, "solve: %v\n", err)
		return exitFailure
	}

	res, err := planner.Plan(ctx, inst, opts)
	if err != nil {
		if res != nil {
			fmt.Fprintf(stdout, "status:    %s\n", res.Status)
		}
		fmt.Fprintf(stderr, "solve: %v\n", err)
		return exitFailure
	}

	printResult(stdout, inst, res)
	if !res.Succeeded() {
		return exitFailure
	}
	return exitOK
}

func printResult(w io.Writer, inst *instance.Instance, res *planner.Result) {
	fmt.Fprintf(w, "status:    %s\n", res.Status)
	if res.Objective != nil {
		fmt.Fprintf(w, "objective: %g\n", *res.Objective)
	}
	if res.Gap != nil {
		fmt.Fprintf(w, "gap:       %.4g\n", *res.Gap)
	}
	fmt.Fprintf(w, "model:     %d variables (%d masked), %d constraints\n",
		res.Model.Variables, res.Model.Masked, res.Model.Constraints)
	fmt.Fprintf(w, "elapsed:   %v, %d nodes\n", res.Elapsed.Round(time.Millisecond), res.Nodes)
	if res.Schedule == nil {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tCOMPLETED\tSTART\tEND\tDURATION\tLATE\tCONTRIBUTION")
	for _, js := range res.Schedule.Jobs {
		if js.Completed {
			fmt.Fprintf(tw, "%s\tyes\t%d\t%d\t%d\t%d\t%s\n", js.Name, js.Start, js.End, js.Duration, js.Lateness, js.Contribution)
		} else {
			fmt.Fprintf(tw, "%s\tno\t-\t-\t-\t-\t%s\n", js.Name, js.Contribution)
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "\nprofit: %s (%d of %d jobs completed)\n", res.Schedule.Profit, res.Schedule.Completed(), len(inst.Jobs))
}

// =============================================================================
// GENERATE
// =============================================================================

func generateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	skills := fs.Int("skills", 3, "number of skills")
	staff := fs.Int("staff", 4, "number of staff members")
	jobs := fs.Int("jobs", 4, "number of jobs")
	horizon := fs.Int("horizon", 10, "number of days")
	seed := fs.Int64("seed", 1, "random seed")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	inst, err := instance.Generate(instance.GeneratorParams{
		Skills: *skills, Staff: *staff, Jobs: *jobs, Horizon: *horizon,
	}, rand.New(rand.NewSource(*seed)))
	if err != nil {
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return exitFailure
	}

	if *out == "" {
		data, err := instance.Marshal(inst)
		if err != nil {
			fmt.Fprintf(stderr, "generate: %v\n", err)
			return exitFailure
		}
		fmt.Fprintln(stdout, string(data))
		return exitOK
	}
	if err := instance.Save(*out, inst); err != nil {
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return exitFailure
	}
	log.Printf("Wrote %s: %+v", *out, inst.Dimensions())
	return exitOK
}
