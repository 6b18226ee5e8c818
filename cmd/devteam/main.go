// devteam is the CLI for the multi-agent build pipeline: it initializes a
// project configuration, then drives full builds, single-feature passes, or
// a manager-mediated chat against a project directory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"devteam/pkg/build"
	"devteam/pkg/config"
	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/persistence"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: devteam <command> [flags]

Commands:
  init      Create a devteam.json configuration in the project directory
  build     Run the full pipeline against a requirements file
  feature   Implement, test, and review a single feature
  chat      Delegate a free-form request through the manager agent
  history   List recent builds from the history store

Run 'devteam <command> -h' for command flags.
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	logger := logx.NewLogger("cli")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "build":
		err = cmdBuild(ctx, os.Args[2:])
	case "feature":
		err = cmdFeature(ctx, os.Args[2:])
	case "chat":
		err = cmdChat(ctx, os.Args[2:])
	case "history":
		err = cmdHistory(ctx, os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// promptSecret reads a secret from the terminal without echo, falling back
// to plain line input when stdin is not a terminal.
func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		value, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		return strings.TrimSpace(string(value)), nil
	}
	return promptLine("")
}

func promptLine(label string) (string, error) {
	if label != "" {
		fmt.Printf("%s: ", label)
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", ".", "Project directory")
	model := fs.String("model", "claude-sonnet-4-20250514", "Default model id for all roles")
	provider := fs.String("provider", config.ProviderAnthropic, "Default provider for all roles")
	encrypt := fs.Bool("encrypt-secrets", false, "Store the GitHub token in an encrypted secrets file")
	_ = fs.Parse(args)

	username, err := promptLine("GitHub username (empty to disable version control)")
	if err != nil {
		return err
	}

	var token string
	if username != "" {
		token, err = promptSecret("GitHub token")
		if err != nil {
			return err
		}
	}

	repository := ""
	if username != "" {
		repository, err = promptLine("GitHub repository (empty to create later)")
		if err != nil {
			return err
		}
	}

	cfg := &config.Config{
		GitHub: config.GitHubConfig{
			Username:   username,
			Repository: repository,
		},
		Agents: map[string]config.AgentModelConfig{},
	}
	for _, role := range config.MandatoryRoles() {
		cfg.Agents[role] = config.AgentModelConfig{
			ModelID:     *model,
			Provider:    *provider,
			Temperature: config.DefaultTemperature,
			MaxTokens:   config.DefaultMaxTokens,
		}
	}

	if token != "" {
		if *encrypt {
			password, err := promptSecret("Secrets password")
			if err != nil {
				return err
			}
			if err := config.EncryptSecretsFile(*dir, password, map[string]string{"github_token": token}); err != nil {
				return fmt.Errorf("encrypting secrets: %w", err)
			}
			cfg.GitHub.Token = "${GITHUB_TOKEN}"
			fmt.Println("Token stored encrypted; export GITHUB_TOKEN or decrypt at build time.")
		} else {
			cfg.GitHub.Token = token
		}
	}

	path := filepath.Join(*dir, config.ConfigFilename)
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// loadOrchestrator loads configuration and constructs the orchestrator bound
// to the project directory.
func loadOrchestrator(ctx context.Context, dir string, withStore bool) (*build.Orchestrator, *persistence.Store, error) {
	cfg, err := config.Load(filepath.Join(dir, config.ConfigFilename))
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	opts := []build.Option{
		build.WithRecorder(metrics.NewPrometheusRecorder(nil)),
	}

	var store *persistence.Store
	if withStore {
		store, err = persistence.Open(filepath.Join(dir, ".devteam", "history.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("opening build history: %w", err)
		}
		opts = append(opts, build.WithStore(store))
	}

	orch, err := build.New(ctx, cfg, opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	name := filepath.Base(dir)
	if abs, absErr := filepath.Abs(dir); absErr == nil {
		dir = abs
		name = filepath.Base(abs)
	}
	if err := orch.SetProject(name, "", dir); err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}
	return orch, store, nil
}

func cmdBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	dir := fs.String("dir", ".", "Project directory")
	reqPath := fs.String("requirements", "", "Path to a requirements text file")
	managed := fs.Bool("manager", false, "Let the manager agent plan and delegate the build")
	_ = fs.Parse(args)

	if *reqPath == "" {
		return fmt.Errorf("-requirements is required")
	}
	requirements, err := os.ReadFile(*reqPath)
	if err != nil {
		return fmt.Errorf("reading requirements: %w", err)
	}

	orch, store, err := loadOrchestrator(ctx, *dir, true)
	if err != nil {
		return err
	}
	defer func() {
		if store != nil {
			_ = store.Close()
		}
	}()

	if *managed {
		summary, err := orch.DelegateBuild(ctx, string(requirements))
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	}

	result, err := orch.BuildApplication(ctx, string(requirements))
	if err != nil {
		return err
	}

	fmt.Printf("Build %s finished with %d features:\n", result.ID, len(result.FeatureResults))
	for i := range result.FeatureResults {
		fr := &result.FeatureResults[i]
		fmt.Printf("  %-10s %s", fr.Status, fr.Feature.Name)
		if fr.Branch != "" {
			fmt.Printf(" (branch %s)", fr.Branch)
		}
		fmt.Println()
		if fr.Error != "" {
			fmt.Printf("             %s\n", fr.Error)
		}
	}
	if result.Failed() {
		return fmt.Errorf("build completed with feature failures")
	}
	return nil
}

func cmdFeature(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feature", flag.ExitOnError)
	dir := fs.String("dir", ".", "Project directory")
	name := fs.String("name", "", "Feature name")
	description := fs.String("description", "", "Feature description")
	_ = fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	if *description == "" {
		*description = "Implement " + *name
	}

	orch, _, err := loadOrchestrator(ctx, *dir, false)
	if err != nil {
		return err
	}

	feature := build.Feature{Name: *name, Description: *description, Priority: "high", Complexity: "medium"}

	implementation, err := orch.ImplementFeature(ctx, &feature, "Existing project at "+*dir)
	if err != nil {
		return err
	}
	tests, err := orch.CreateTests(ctx, &feature, implementation)
	if err != nil {
		return err
	}
	review, err := orch.ReviewCode(ctx, &feature, implementation, tests)
	if err != nil {
		return err
	}

	fmt.Println("Implementation:\n" + implementation)
	fmt.Println("\nTests:\n" + tests)
	fmt.Println("\nReview:\n" + review)
	return nil
}

func cmdChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	dir := fs.String("dir", ".", "Project directory")
	_ = fs.Parse(args)

	orch, _, err := loadOrchestrator(ctx, *dir, false)
	if err != nil {
		return err
	}

	request := strings.Join(fs.Args(), " ")
	if request == "" {
		request, err = promptLine("Request")
		if err != nil {
			return err
		}
	}

	reply, err := orch.Delegate(ctx, request)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dir := fs.String("dir", ".", "Project directory")
	limit := fs.Int("limit", 10, "Number of builds to list")
	_ = fs.Parse(args)

	store, err := persistence.Open(filepath.Join(*dir, ".devteam", "history.db"))
	if err != nil {
		return fmt.Errorf("opening build history: %w", err)
	}
	defer func() { _ = store.Close() }()

	builds, err := store.ListBuilds(ctx, *limit)
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		fmt.Println("No builds recorded.")
		return nil
	}
	for i := range builds {
		b := &builds[i]
		fmt.Printf("%s  %-8s %s  %s\n", b.StartedAt.Format("2006-01-02 15:04"), b.Status, b.ID, b.ProjectName)
	}
	return nil
}
