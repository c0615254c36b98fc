package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

var (
	ingestFile        string
	ingestEvent       string
	ingestVenue       string
	ingestDistrict    string
	ingestDescription string
	ingestURL         string
	ingestCollection  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the pipeline once for a single event record",
	Long:  "Takes an event from flags or a JSON file through verification, enrichment, quality audit and storage, then prints the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := ingestRecord()
		if err != nil {
			return err
		}

		env, err := initPipeline(cmd.Context(), "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Pipeline.Run(cmd.Context(), record)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		fmt.Println(string(out))
		return nil
	},
}

// ingestRecord builds the input record from --file or the field flags.
func ingestRecord() (model.RawEventRecord, error) {
	if ingestFile != "" {
		data, err := os.ReadFile(ingestFile)
		if err != nil {
			return model.RawEventRecord{}, eris.Wrapf(err, "read %s", ingestFile)
		}
		var record model.RawEventRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return model.RawEventRecord{}, eris.Wrapf(err, "parse %s", ingestFile)
		}
		return record, nil
	}

	if ingestEvent == "" || ingestVenue == "" {
		return model.RawEventRecord{}, eris.New("either --file or both --event and --venue are required")
	}
	return model.RawEventRecord{
		EventName:   ingestEvent,
		VenueName:   ingestVenue,
		District:    ingestDistrict,
		Description: ingestDescription,
		URL:         ingestURL,
		Collection:  ingestCollection,
	}, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "JSON file with the event record")
	ingestCmd.Flags().StringVar(&ingestEvent, "event", "", "event name")
	ingestCmd.Flags().StringVar(&ingestVenue, "venue", "", "venue name")
	ingestCmd.Flags().StringVar(&ingestDistrict, "district", "", "district")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "free-text description")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "event URL")
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "collection label, e.g. FestivalEvents")
	rootCmd.AddCommand(ingestCmd)
}
