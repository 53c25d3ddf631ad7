package sources

import (
	"bytes"
	"embed"
	"io"
	"os"

	"healthpipe/internal/common"
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

//go:embed samples/cdc_places.csv samples/environmental.csv
var sampleFS embed.FS

var sampleFiles = map[string]string{
	CDCPlaces:     "samples/cdc_places.csv",
	Environmental: "samples/environmental.csv",
}

// OpenStage opens the staged file for a source. A stage file on disk wins;
// when none exists the embedded sample set is served instead, mirroring the
// mock-data ingestion of the original pipeline.
func OpenStage(source models.Source) (io.ReadCloser, error) {
	if source.StagePath != "" {
		cleaned, err := common.CleanPath(source.StagePath)
		if err == nil {
			if f, err := os.Open(cleaned); err == nil { // #nosec G304 - path is validated
				return f, nil
			}
		}
	}

	name, ok := sampleFiles[source.Name]
	if !ok {
		return nil, errors.New(errors.ErrCodeStageNotFound,
			"No stage file or sample data for source "+source.Name).
			WithContext("stage_path", source.StagePath)
	}

	data, err := sampleFS.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStageNotFound, "Failed to read embedded sample")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
