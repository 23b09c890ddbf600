// Command reclassroom runs requirements-elicitation training sessions from a
// terminal: import scenarios, chat with simulated stakeholders, manage the
// requirements workbench, submit a final specification, and grade it.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"reclassroom/pkg/config"
	"reclassroom/pkg/eval"
	"reclassroom/pkg/llm"
	"reclassroom/pkg/llm/factory"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/metrics"
	"reclassroom/pkg/persistence"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/turn"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var exitCode int
	switch os.Args[1] {
	case "scenario":
		exitCode = scenarioCommand(os.Args[2:])
	case "run":
		exitCode = runCommand(os.Args[2:])
	case "eval":
		exitCode = evalCommand(os.Args[2:])
	case "secrets":
		exitCode = secretsCommand(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("reclassroom %s (%s)\n", version, commit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		printUsage()
		exitCode = 1
	}
	os.Exit(exitCode)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: reclassroom <command> [flags]

Commands:
  scenario import <file.yaml>   Validate and store a scenario definition
  scenario list                 List stored scenarios
  run -scenario <id> -student <id>
                                Start or resume an elicitation session
  eval -session <id>            Evaluate a submitted session
  secrets set <NAME>            Store an API key in the encrypted secrets file
  version                       Show version information

Common flags:
  -config <path>   Config file (default: reclassroom.json)
  -db <path>       Override the database path
`)
}

func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return 1
}

// openStore loads config, initializes the database, and returns both.
func openStore(configPath, dbOverride string) (*config.Config, *persistence.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dbOverride != "" {
		cfg.DatabasePath = dbOverride
	}
	if err := persistence.Initialize(cfg.DatabasePath); err != nil {
		return nil, nil, err
	}
	return cfg, persistence.Ops(), nil
}

// unlockSecrets makes the provider's API key resolvable before the client is
// built: try env/memory first, then the encrypted secrets file, then an
// interactive prompt as a last resort. The prompted key lives only in memory.
func unlockSecrets(cfg *config.Config) error {
	if _, err := cfg.APIKey(); err == nil {
		return nil
	}

	if config.SecretsFileExists(".") {
		fmt.Print("Secrets file password: ")
		password, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if err := config.DecryptSecretsFile(".", string(password)); err != nil {
			return err
		}
		if _, err := cfg.APIKey(); err == nil {
			return nil
		}
	}

	fmt.Printf("Enter value for %s: ", cfg.LLM.APIKeyName)
	key, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("no API key provided for provider %s", cfg.LLM.Provider)
	}
	config.SetSecret(cfg.LLM.APIKeyName, string(key))
	return nil
}

func scenarioCommand(args []string) int {
	if len(args) < 1 {
		return fail("expected 'scenario import <file.yaml>' or 'scenario list'")
	}

	flagSet := flag.NewFlagSet("scenario", flag.ExitOnError)
	configPath := flagSet.String("config", "reclassroom.json", "Config file path")
	dbPath := flagSet.String("db", "", "Database path override")
	if err := flagSet.Parse(args[1:]); err != nil {
		return fail("%v", err)
	}

	switch args[0] {
	case "import":
		if flagSet.NArg() < 1 {
			return fail("expected a scenario YAML file")
		}
		_, store, err := openStore(*configPath, *dbPath)
		if err != nil {
			return fail("%v", err)
		}
		defer persistence.Close()

		sc, err := scenario.LoadFile(flagSet.Arg(0))
		if err != nil {
			return fail("%v", err)
		}
		if err := store.SaveScenario(sc); err != nil {
			return fail("%v", err)
		}
		fmt.Printf("Imported scenario %q (id %s, %d stakeholders, %s)\n",
			sc.Name, sc.ID, len(sc.Stakeholders), sc.Difficulty)
		return 0

	case "list":
		_, store, err := openStore(*configPath, *dbPath)
		if err != nil {
			return fail("%v", err)
		}
		defer persistence.Close()

		scenarios, err := store.ListScenarios()
		if err != nil {
			return fail("%v", err)
		}
		if len(scenarios) == 0 {
			fmt.Println("No scenarios stored. Import one with 'reclassroom scenario import <file.yaml>'.")
			return 0
		}
		for _, sc := range scenarios {
			fmt.Printf("%-36s  %-30s  %d stakeholders  %s\n", sc.ID, sc.Name, len(sc.Stakeholders), sc.Difficulty)
		}
		return 0

	default:
		return fail("unknown scenario subcommand %q", args[0])
	}
}

func runCommand(args []string) int {
	flagSet := flag.NewFlagSet("run", flag.ExitOnError)
	scenarioID := flagSet.String("scenario", "", "Scenario ID to run")
	studentID := flagSet.String("student", "", "Student identifier")
	styleFlag := flagSet.String("style", string(scenario.StyleNormal), "Persona response style: Normal, Concise, or Detailed")
	configPath := flagSet.String("config", "reclassroom.json", "Config file path")
	dbPath := flagSet.String("db", "", "Database path override")
	if err := flagSet.Parse(args); err != nil {
		return fail("%v", err)
	}
	if *scenarioID == "" || *studentID == "" {
		return fail("both -scenario and -student are required")
	}

	cfg, store, err := openStore(*configPath, *dbPath)
	if err != nil {
		return fail("%v", err)
	}
	defer persistence.Close()

	if err := unlockSecrets(cfg); err != nil {
		return fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	go metrics.Serve(ctx, cfg.MetricsAddr)

	client, err := factory.NewClient(cfg, logx.NewLogger("llm"))
	if err != nil {
		return fail("%v", err)
	}
	client = llm.Chain(client, recorder.Middleware())

	orch, err := turn.NewOrchestrator(client, cfg.HistoryTokenBudget, recorder)
	if err != nil {
		return fail("%v", err)
	}

	sc, err := store.GetScenario(*scenarioID)
	if err != nil {
		return fail("scenario %s: %v", *scenarioID, err)
	}

	session, err := store.FindActiveSession(sc.ID, *studentID)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		session, err = store.CreateSession(sc.ID, *studentID, scenario.ResponseStyle(*styleFlag))
		if err != nil {
			return fail("%v", err)
		}
		fmt.Printf("Started session %s\n", session.ID)
	case err != nil:
		return fail("%v", err)
	default:
		fmt.Printf("Resumed session %s (%d messages so far)\n", session.ID, len(session.DialogueHistory))
	}

	runner := &sessionRunner{
		store:    store,
		client:   client,
		orch:     orch,
		scenario: sc,
		session:  session,
		policy:   sc.Difficulty.Policy(),
	}
	return runner.loop(ctx)
}

// sessionRunner holds the state of one interactive run.
type sessionRunner struct {
	store    *persistence.Store
	client   llm.Client
	orch     *turn.Orchestrator
	scenario *scenario.Scenario
	session  *persistence.SessionRecord
	policy   scenario.Policy
}

func (r *sessionRunner) loop(ctx context.Context) int {
	fmt.Printf("\n%s\n%s\n", r.scenario.Name, r.scenario.ProjectContext)
	fmt.Printf("Stakeholders: %s\n", strings.Join(r.scenario.Roles(), ", "))
	fmt.Println("Type a message to address the stakeholders, or /help for workbench commands.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			fmt.Println()
			return 0
		}
		if ctx.Err() != nil {
			return 0
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, code := r.handleCommand(ctx, scanner, line)
			if done {
				return code
			}
			continue
		}

		if err := r.executeTurn(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

// handleCommand processes a workbench slash command. It returns done=true
// when the session loop should exit.
func (r *sessionRunner) handleCommand(ctx context.Context, scanner *bufio.Scanner, line string) (bool, int) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help":
		fmt.Println(`Workbench commands:
  /requirement <source role> | <text>   Record an elicited requirement
  /requirements                         List recorded requirements
  /analyze                              Run conflict analysis over the workbench
  /status                               Show negotiation status
  /style <Normal|Concise|Detailed>      Change persona verbosity
  /submit                               Submit the final specification and exit
  /quit                                 Leave the session (resumable later)`)

	case "/requirement":
		source, text, found := strings.Cut(rest, "|")
		source, text = strings.TrimSpace(source), strings.TrimSpace(text)
		if !found || source == "" || text == "" {
			fmt.Println("Usage: /requirement <source role> | <requirement text>")
			break
		}
		if r.scenario.FindStakeholder(source) == nil {
			fmt.Printf("Note: %q is not a stakeholder in this scenario.\n", source)
		}
		r.session.Requirements = append(r.session.Requirements, scenario.ElicitedRequirement{
			Requirement: text,
			Source:      source,
		})
		if err := r.store.UpdateSessionRequirements(r.session.ID, r.session.Requirements); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		fmt.Printf("Recorded requirement %d.\n", len(r.session.Requirements))

	case "/requirements":
		if len(r.session.Requirements) == 0 {
			fmt.Println("No requirements recorded yet.")
			break
		}
		for i, req := range r.session.Requirements {
			fmt.Printf("%2d. %s  (source: %s)\n", i+1, req.Requirement, req.Source)
		}

	case "/analyze":
		r.analyzeRequirements(ctx)

	case "/status":
		r.printNegotiationStatus()

	case "/style":
		style := scenario.ResponseStyle(rest)
		switch style {
		case scenario.StyleNormal, scenario.StyleConcise, scenario.StyleDetailed:
			r.session.ResponseStyle = style
			if err := r.store.UpdateSessionResponseStyle(r.session.ID, style); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break
			}
			fmt.Printf("Response style set to %s.\n", style)
		default:
			fmt.Println("Usage: /style <Normal|Concise|Detailed>")
		}

	case "/submit":
		return true, r.submit(scanner)

	case "/quit", "/exit":
		fmt.Println("Session saved. Run the same command to resume.")
		return true, 0

	default:
		fmt.Printf("Unknown command %s. Try /help.\n", cmd)
	}
	return false, 0
}

// executeTurn runs one full orchestration turn for a student message and
// persists the outcome.
func (r *sessionRunner) executeTurn(ctx context.Context, message string) error {
	studentMsg := scenario.DialogueMessage{Role: "student", Content: message}
	prevLen := len(r.session.DialogueHistory) + 1

	tc := &turn.Context{
		ProjectContext:     r.scenario.ProjectContext,
		Stakeholders:       r.scenario.Stakeholders,
		EvaluationCriteria: r.scenario.EvaluationCriteria,
		Requirements:       r.session.Requirements,
		DialogueHistory:    append(append([]scenario.DialogueMessage{}, r.session.DialogueHistory...), studentMsg),
		NegotiationStatus:  r.session.NegotiationStatus,
		Ambiguity:          r.session.Ambiguity,
		Difficulty:         r.scenario.Difficulty,
		ResponseStyle:      r.session.ResponseStyle,
	}

	result, err := r.orch.RunTurn(ctx, tc)
	if err != nil {
		return err
	}

	r.session.DialogueHistory = result.DialogueHistory
	r.session.NegotiationStatus = result.NegotiationStatus
	r.session.Ambiguity = result.Ambiguity
	r.session.IsConcluding = result.IsConcluding

	if err := r.store.UpdateSessionTurn(r.session); err != nil {
		if errors.Is(err, persistence.ErrStaleSession) {
			return fmt.Errorf("session was modified elsewhere; restart to resume it")
		}
		return err
	}
	for _, msg := range r.session.DialogueHistory[prevLen-1:] {
		if err := r.store.LogInteraction(r.session.ID, msg); err != nil {
			return err
		}
	}

	for _, msg := range r.session.DialogueHistory[prevLen:] {
		fmt.Printf("\n%s: %s\n", msg.Role, msg.Content)
	}

	if !r.policy.SkipAmbiguity && r.session.Ambiguity.CurrentScore != nil {
		fmt.Printf("\n[clarity %d/10] %s\n", *r.session.Ambiguity.CurrentScore, r.session.Ambiguity.Reason)
	}
	if r.session.IsConcluding {
		fmt.Println("\nThe stakeholders consider the discussion complete. Review /requirements and /submit when ready.")
	}
	return nil
}

// analyzeRequirements runs the caller-initiated conflict analysis over the
// workbench and stores the result.
func (r *sessionRunner) analyzeRequirements(ctx context.Context) {
	if len(r.session.Requirements) == 0 {
		fmt.Println("Nothing to analyze: record requirements with /requirement first.")
		return
	}

	analyzer, err := eval.NewAnalyzer(r.client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	status, err := analyzer.AnalyzeRequirements(ctx, r.session.Requirements, r.scenario.Stakeholders, r.scenario.ProjectContext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: analysis failed: %v\n", err)
		return
	}

	r.session.NegotiationStatus = status
	if err := r.store.UpdateSessionNegotiationStatus(r.session.ID, status); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	r.printNegotiationStatus()
}

func (r *sessionRunner) printNegotiationStatus() {
	if len(r.session.NegotiationStatus) == 0 {
		fmt.Println("No negotiation status yet. Record requirements and /analyze, or keep talking.")
		return
	}
	// Iterate the workbench order rather than the map.
	for _, req := range r.session.Requirements {
		standing, ok := r.session.NegotiationStatus[req.Requirement]
		if !ok {
			continue
		}
		fmt.Printf("[%-8s] %s\n", standing.Status, req.Requirement)
		if standing.Reason != "" && !r.policy.SuppressReasons {
			fmt.Printf("           %s\n", standing.Reason)
		}
	}
}

// submit collects conflict-resolution notes and stores the deliverable.
func (r *sessionRunner) submit(scanner *bufio.Scanner) int {
	if len(r.session.Requirements) == 0 {
		fmt.Println("Cannot submit an empty specification. Record requirements with /requirement first.")
		return 0
	}

	fmt.Print("Conflict resolution notes (one line): ")
	if !scanner.Scan() {
		return 1
	}
	notes := strings.TrimSpace(scanner.Text())

	spec := &persistence.FinalSpecification{
		Requirements:            r.session.Requirements,
		ConflictResolutionNotes: notes,
	}
	if err := r.store.SubmitFinalSpecification(r.session.ID, spec); err != nil {
		return fail("%v", err)
	}
	fmt.Printf("Submitted %d requirements. Grade with: reclassroom eval -session %s\n",
		len(spec.Requirements), r.session.ID)
	return 0
}

func evalCommand(args []string) int {
	flagSet := flag.NewFlagSet("eval", flag.ExitOnError)
	sessionID := flagSet.String("session", "", "Session ID to evaluate")
	configPath := flagSet.String("config", "reclassroom.json", "Config file path")
	dbPath := flagSet.String("db", "", "Database path override")
	if err := flagSet.Parse(args); err != nil {
		return fail("%v", err)
	}
	if *sessionID == "" {
		return fail("-session is required")
	}

	cfg, store, err := openStore(*configPath, *dbPath)
	if err != nil {
		return fail("%v", err)
	}
	defer persistence.Close()

	session, err := store.GetSession(*sessionID)
	if err != nil {
		return fail("session %s: %v", *sessionID, err)
	}
	if session.Status == persistence.SessionActive {
		return fail("session %s has not been submitted yet", *sessionID)
	}
	sc, err := store.GetScenario(session.ScenarioID)
	if err != nil {
		return fail("%v", err)
	}
	transcript, err := store.GetSessionInteractions(session.ID)
	if err != nil {
		return fail("%v", err)
	}

	if err := unlockSecrets(cfg); err != nil {
		return fail("%v", err)
	}
	client, err := factory.NewClient(cfg, logx.NewLogger("llm"))
	if err != nil {
		return fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	evaluator, err := eval.NewEvaluator(client)
	if err != nil {
		return fail("%v", err)
	}
	report, err := evaluator.EvaluateSubmission(ctx, session, sc, transcript)
	if err != nil {
		return fail("%v", err)
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fail("%v", err)
	}
	if err := store.SaveEvaluationReport(session.ID, string(reportJSON)); err != nil {
		return fail("%v", err)
	}

	fmt.Printf("Evaluation for session %s (%s):\n\n", session.ID, sc.Name)
	printAssessment("Requirements coverage", report.Coverage)
	printAssessment("Conflict identification", report.ConflictIdentification)
	printAssessment("Solution validity", report.SolutionValidity)
	fmt.Printf("Overall: %s\n", report.OverallFeedback)
	return 0
}

func printAssessment(name string, a eval.Assessment) {
	fmt.Printf("%s: %d/5\n  %s\n\n", name, a.Score, a.Feedback)
}

func secretsCommand(args []string) int {
	if len(args) < 1 || args[0] != "set" {
		return fail("expected 'secrets set <NAME>'")
	}

	flagSet := flag.NewFlagSet("secrets", flag.ExitOnError)
	dir := flagSet.String("dir", ".", "Directory holding the secrets file")
	if err := flagSet.Parse(args[1:]); err != nil {
		return fail("%v", err)
	}
	if flagSet.NArg() < 1 {
		return fail("expected a secret name, e.g. OPENAI_API_KEY")
	}
	name := flagSet.Arg(0)

	exists := config.SecretsFileExists(*dir)
	fmt.Print("Secrets file password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fail("failed to read password: %v", err)
	}

	if exists {
		if err := config.DecryptSecretsFile(*dir, string(password)); err != nil {
			return fail("%v", err)
		}
	} else {
		fmt.Print("Confirm password: ")
		confirm, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return fail("failed to read password: %v", err)
		}
		if string(password) != string(confirm) {
			return fail("passwords do not match")
		}
	}

	fmt.Printf("Value for %s: ", name)
	value, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fail("failed to read value: %v", err)
	}
	if len(value) == 0 {
		return fail("empty secret value")
	}

	config.SetSecret(name, string(value))
	if err := config.EncryptSecretsFile(*dir, string(password), config.AllSecrets()); err != nil {
		return fail("%v", err)
	}
	fmt.Printf("Stored %s in %s\n", name, config.SecretsFilePath(*dir))
	return 0
}
