package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/usecase"
)

var decideFlags struct {
	file string
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Fuse engine results, run the rule engine and print the decision",
	Long: `Reads {"results": {<slot>: <engine result>}, "checks": [<micro check>]}
from a JSON file and prints the fusion matrix, its quality and the execution
decision. Nothing is audited.`,
	RunE: runDecide,
}

func init() {
	f := decideCmd.Flags()
	f.StringVarP(&decideFlags.file, "file", "f", "", "JSON decision input (required)")
	_ = decideCmd.MarkFlagRequired("file")
}

type decideInput struct {
	Results map[models.EngineSlot]json.RawMessage `json:"results"`
	Checks  []models.MicroCheck                   `json:"checks"`
}

func runDecide(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(decideFlags.file)
	if err != nil {
		return fmt.Errorf("read decision input: %w", err)
	}
	var in decideInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode decision input %s: %w", decideFlags.file, err)
	}
	results, err := models.DecodeEngineResults(in.Results)
	if err != nil {
		return err
	}

	svc := usecase.NewDecisionService(nil, nil, nil, nil, nil)
	out, err := svc.Decide(cmd.Context(), usecase.DecisionInput{Results: results, Checks: in.Checks})
	if err != nil {
		return err
	}
	return writeJSON(cmd, out)
}
