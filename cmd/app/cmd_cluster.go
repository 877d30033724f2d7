package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/cluster"
	"RiskPulse/internal/services/features"
	xhttp "RiskPulse/pkg/http"
)

var clusterFlags struct {
	file string
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster a file of signal records and print the result",
	Long: `Reads signal records from a JSON file, either a bare array or an object
with a "signals" array, and prints the strongest clusters as JSON.`,
	RunE: runCluster,
}

func init() {
	f := clusterCmd.Flags()
	f.StringVarP(&clusterFlags.file, "file", "f", "", "JSON file of signal records (required)")
	_ = clusterCmd.MarkFlagRequired("file")
}

func runCluster(cmd *cobra.Command, _ []string) error {
	records, err := readSignals(clusterFlags.file)
	if err != nil {
		return err
	}
	for i := range records {
		if err := xhttp.ValidateStruct(cmd.Context(), &records[i]); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
	}

	clusters := cluster.NewEngine(features.NewEncoder()).Cluster(records)
	if clusters == nil {
		clusters = []models.Cluster{}
	}
	return writeJSON(cmd, clusters)
}

func readSignals(path string) ([]models.SignalRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}
	data = bytes.TrimSpace(data)

	var records []models.SignalRecord
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &records)
	} else {
		var wrapped struct {
			Signals []models.SignalRecord `json:"signals"`
		}
		err = json.Unmarshal(data, &wrapped)
		records = wrapped.Signals
	}
	if err != nil {
		return nil, fmt.Errorf("decode signals %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
