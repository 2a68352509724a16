package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
	"github.com/Rocksteady808/roolify-sub002/internal/service"
)

// settingsFile is the offline form of a form's routing settings
type settingsFile struct {
	AdminRoutes        []routing.Route `json:"adminRoutes" yaml:"adminRoutes"`
	UserRoutes         []routing.Route `json:"userRoutes" yaml:"userRoutes"`
	AdminFallbackEmail string          `json:"adminFallbackEmail" yaml:"adminFallbackEmail"`
	UserFallbackEmail  string          `json:"userFallbackEmail" yaml:"userFallbackEmail"`
}

func newRoutesCmd() *cobra.Command {
	routes := &cobra.Command{
		Use:   "routes",
		Short: "Work with notification routes",
	}

	var (
		settingsPath   string
		submissionPath string
		format         string
		substring      bool
	)
	test := &cobra.Command{
		Use:   "test",
		Short: "Evaluate routes from a settings file against a sample submission",
		Long: `Evaluate admin and user routes against a submission without storing
anything or sending email. The settings file may be YAML or JSON; the
submission is a webhook body, either flat fields or a Webflow envelope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := readSettingsFile(settingsPath)
			if err != nil {
				return err
			}

			body, err := os.ReadFile(submissionPath)
			if err != nil {
				return fmt.Errorf("failed to read submission: %w", err)
			}
			payload, err := service.ParsePayload(body)
			if err != nil {
				return err
			}

			var opts []routing.ResolverOption
			if substring {
				opts = append(opts, routing.WithSubstringFallback())
			}
			plan := service.PlanNotifications(settings, payload.Fields, routing.NewResolver(opts...))

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			case "text":
				printPlan(cmd.OutOrStdout(), plan)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
		},
	}
	test.Flags().StringVarP(&settingsPath, "settings", "s", "", "Settings file (.yaml, .yml or .json)")
	test.Flags().StringVar(&submissionPath, "submission", "", "Submission JSON file")
	test.Flags().StringVarP(&format, "format", "o", "text", "Output format: text or json")
	test.Flags().BoolVar(&substring, "substring", false, "Allow unique substring field matches")
	_ = test.MarkFlagRequired("settings")
	_ = test.MarkFlagRequired("submission")

	routes.AddCommand(test)
	return routes
}

func readSettingsFile(path string) (*models.NotificationSettings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var file settingsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &file)
	default:
		err = json.Unmarshal(raw, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode settings %s: %w", path, err)
	}

	settings := &models.NotificationSettings{
		AdminFallbackEmail: file.AdminFallbackEmail,
		UserFallbackEmail:  file.UserFallbackEmail,
	}
	if err := settings.SetRoutes(file.AdminRoutes, file.UserRoutes); err != nil {
		return nil, err
	}
	return settings, nil
}

func printPlan(w io.Writer, plan service.Plan) {
	printEvaluation(w, "admin", plan.Admin)
	printEvaluation(w, "user", plan.User)
	for _, p := range plan.Problems {
		fmt.Fprintf(w, "warning: %s\n", p)
	}
}

func printEvaluation(w io.Writer, side string, ev routing.Evaluation) {
	recipients := strings.Join(ev.Recipients, ", ")
	if recipients == "" {
		recipients = "(nobody)"
	}
	source := ev.State.String()
	if ev.FallbackUsed {
		source += ", fallback"
	}
	fmt.Fprintf(w, "%s: %s -> %s\n", side, source, recipients)

	for _, r := range ev.Results {
		label := fmt.Sprintf("  route %d: %s %s %q", r.Index+1, r.Route.Field, r.Route.Operator, r.Route.Value)
		switch {
		case !r.Valid:
			fmt.Fprintf(w, "%s: skipped (%s)\n", label, r.Reason)
		case !r.Found:
			fmt.Fprintf(w, "%s: field not found\n", label)
		case r.Matched:
			fmt.Fprintf(w, "%s: matched %q=%q\n", label, r.MatchedKey, r.FieldValue)
		default:
			fmt.Fprintf(w, "%s: no match (%q=%q)\n", label, r.MatchedKey, r.FieldValue)
		}
	}
}
