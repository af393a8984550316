// Package check implements the abacctl "check" subcommand: load a
// resource-type universe and a directory of policy documents, then
// evaluate one (subject, resource, action) authorization decision and
// print the result.
package check

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	abac "github.com/chirino/abac-engine"
	"github.com/chirino/abac-engine/internal/config"
)

// Command returns the "check" cli.Command, built by a Command() factory
// that cmd/abacctl registers as a subcommand.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Evaluate a single authorization decision against a policy directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "universe",
				Sources:  cli.EnvVars("ABACCTL_UNIVERSE"),
				Usage:    "comma-separated resource type universe, e.g. user,todo",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "policy-dir",
				Sources:  cli.EnvVars("ABACCTL_POLICY_DIR"),
				Usage:    "directory containing *.json policy documents",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "subject",
				Usage:    "path to a JSON resource document for the subject",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "resource",
				Usage:    "path to a JSON resource document for the resource",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "action",
				Usage:    "one of read|create|update|delete",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "print the structured evaluation trace",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			cfg.ApplyEnv()
			cfg.Universe = splitCSV(cmd.String("universe"))
			cfg.PolicyDir = cmd.String("policy-dir")
			cfg.Debug = cmd.Bool("debug")
			ctx = config.WithContext(ctx, &cfg)

			return run(cfg, cmd.String("subject"), cmd.String("resource"), cmd.String("action"))
		},
	}
}

func run(cfg config.Config, subjectPath, resourcePath, actionStr string) error {
	pm, err := abac.NewPolicyManager(cfg.Universe)
	if err != nil {
		return fmt.Errorf("build policy manager: %w", err)
	}

	docs, err := loadPolicyDocuments(cfg.PolicyDir)
	if err != nil {
		return fmt.Errorf("load policy documents: %w", err)
	}
	for i, errDoc := range pm.AddPolicies(docs) {
		if errDoc != nil {
			log.Warn("policy document rejected", "index", i, "err", errDoc)
		}
	}

	subjectDoc, err := loadResourceDocument(subjectPath)
	if err != nil {
		return fmt.Errorf("load subject: %w", err)
	}
	resourceDoc, err := loadResourceDocument(resourcePath)
	if err != nil {
		return fmt.Errorf("load resource: %w", err)
	}
	subject, err := pm.CreateResource(*subjectDoc)
	if err != nil {
		return fmt.Errorf("validate subject: %w", err)
	}
	resource, err := pm.CreateResource(*resourceDoc)
	if err != nil {
		return fmt.Errorf("validate resource: %w", err)
	}

	engine := abac.NewAuthEngine(pm.GetPolicies())

	var obs abac.Observer
	if cfg.Debug {
		obs = abac.ObserverFunc(func(stage abac.Stage, payload any) {
			fmt.Printf("[%s] %+v\n", stage, payload)
		})
	}

	authorized, err := engine.IsAuthorized(subject, resource, abac.Action(actionStr), obs)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	fmt.Println(authorized)
	return nil
}

func loadPolicyDocuments(dir string) ([]abac.PolicyDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var docs []abac.PolicyDocument
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var doc abac.PolicyDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadResourceDocument(path string) (*abac.ResourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc abac.ResourceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
