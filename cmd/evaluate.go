package cmd

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-feature/assignd/pkg/eval"
	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/sync"
)

var (
	evalFlagsPath   string
	evalBandits     string
	evalFlagKey     string
	evalSubject     string
	evalAttributes  string
	evalType        string
	evalShowDetails bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single flag for a subject",
	Long:  `Load the flag configuration once, evaluate one flag and print the result as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := &sync.FilePathSync{
			FlagsPath:   evalFlagsPath,
			BanditsPath: evalBandits,
			Logger:      log.WithField("component", "filepath-sync"),
		}
		cfg, err := fs.Fetch(cmd.Context())
		if err != nil {
			return err
		}

		subject := model.Subject{Key: evalSubject, Attributes: model.Attributes{}}
		if evalAttributes != "" {
			if err := json.Unmarshal([]byte(evalAttributes), &subject.Attributes); err != nil {
				return fmt.Errorf("invalid --attributes: %w", err)
			}
		}

		evaluator := eval.NewEvaluator()
		expected := model.VariationType(evalType)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if evalShowDetails {
			_, details, _ := evaluator.AssignWithDetails(cfg, evalFlagKey, subject, expected)
			return enc.Encode(details)
		}
		assignment, err := eval.AssignObserved(evaluator, eval.NewLogObserver(log.StandardLogger()), cfg, evalFlagKey, subject, expected)
		if err != nil {
			return err
		}
		return enc.Encode(assignment)
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalFlagsPath, "flags", "f", "", "path to the universal flag configuration document")
	evaluateCmd.Flags().StringVarP(&evalBandits, "bandits", "b", "", "path to the bandit models document")
	evaluateCmd.Flags().StringVar(&evalFlagKey, "flag", "", "flag key to evaluate")
	evaluateCmd.Flags().StringVar(&evalSubject, "subject", "", "subject key")
	evaluateCmd.Flags().StringVar(&evalAttributes, "attributes", "", "subject attributes as a JSON object")
	evaluateCmd.Flags().StringVar(&evalType, "type", "", "expected variation type, e.g. STRING")
	evaluateCmd.Flags().BoolVar(&evalShowDetails, "details", false, "print the full evaluation details")
	_ = evaluateCmd.MarkFlagRequired("flags")
	_ = evaluateCmd.MarkFlagRequired("flag")
	_ = evaluateCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(evaluateCmd)
}
