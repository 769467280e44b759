package main

import (
	"fmt"
	"strings"

	"github.com/dshills/prdforge/internal/artifacts"
	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/export"
	"github.com/dshills/prdforge/internal/generation"
	"github.com/dshills/prdforge/internal/llm"
	"github.com/spf13/cobra"
)

const cliSession = "cli"

func newGenerateCmd(a *app) *cobra.Command {
	var (
		answer   string
		provider string
		model    string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "generate <kind> <text...>",
		Short: "Generate and save an artifact",
		Long: `Generate an artifact of the given kind and save it.

Kinds: prd, user-stories, problem-refiner, feature-prioritizer,
sprint-planner, interview-prep.

For feature-prioritizer every argument after the kind is one feature.

Examples:
  prdforge generate prd "A habit tracker for remote engineering teams"
  prdforge generate feature-prioritizer "SSO" "Dark mode" "Audit log"
  prdforge generate interview-prep "Tell me about a failed launch" --answer "We shipped late..."`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "markdown" && format != "json" {
				return fmt.Errorf("unknown format %q (want markdown or json)", format)
			}
			tool, err := domain.ParseToolType(args[0])
			if err != nil {
				return err
			}

			in := generation.Input{
				Tool:     tool,
				Answer:   answer,
				Provider: llm.Provider(provider),
				Model:    model,
			}
			if tool == domain.ToolFeaturePrioritizer {
				in.Features = args[1:]
			} else {
				in.Text = strings.Join(args[1:], " ")
			}

			result, err := a.generator.Generate(cmd.Context(), in)
			if err != nil {
				return err
			}
			art, err := a.artifacts.Create(cmd.Context(), artifacts.CreateInput{
				ToolType: tool,
				RawInput: in.RawInput(),
				Title:    result.Title,
				Payload:  result.Payload,
				Model:    result.Model,
			})
			if err != nil {
				return err
			}
			a.artifacts.RecordGeneration(cmd.Context(), art, result.Duration, cliSession)

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				data, err := export.JSON(art)
				if err != nil {
					return err
				}
				printf(out, "%s\n", data)
			default:
				printf(out, "%s\n", export.Markdown(art))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&answer, "answer", "", "draft answer to get feedback on (interview-prep)")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider override")
	cmd.Flags().StringVar(&model, "model", "", "LLM model override")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown or json")
	return cmd
}
