package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/driftstack/drift-monitor/internal/models"
	"github.com/driftstack/drift-monitor/internal/utils"
)

// ResultStore persists run results under <basePath>/results. The status file
// is rewritten on every snapshot so it always carries the latest state; drift
// detail files are written once and never touched again.
type ResultStore struct {
	basePath string
	logger   *slog.Logger
}

// NewResultStore creates a ResultStore rooted at basePath.
func NewResultStore(basePath string, logger *slog.Logger) *ResultStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultStore{basePath: basePath, logger: logger}
}

// SaveStatus overwrites the experiment's status file with the snapshot.
func (s *ResultStore) SaveStatus(experimentID string, status models.ExecutionStatus) error {
	payload, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return utils.InternalError("marshal status snapshot", err)
	}

	path := s.resultPath(fmt.Sprintf("%s.result.json", experimentID))
	if err := s.write(path, payload, false); err != nil {
		return err
	}

	s.logger.Debug("status snapshot persisted",
		slog.String("experiment_id", experimentID), slog.String("path", path))
	return nil
}

// SaveDriftDetails writes the drift's detail file. A file that already exists
// is left untouched so re-deliveries cannot rewrite published findings.
func (s *ResultStore) SaveDriftDetails(experimentID string, details models.DriftDetails) error {
	payload, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return utils.InternalError("marshal drift details", err)
	}

	path := s.resultPath(fmt.Sprintf("%s.result.%d.json", experimentID, details.Index))
	if err := s.write(path, payload, true); err != nil {
		if errors.Is(err, fs.ErrExist) {
			s.logger.Debug("drift details already persisted",
				slog.String("experiment_id", experimentID), slog.Int("index", details.Index))
			return nil
		}
		return err
	}

	s.logger.Debug("drift details persisted",
		slog.String("experiment_id", experimentID), slog.String("path", path))
	return nil
}

func (s *ResultStore) resultPath(name string) string {
	return filepath.Join(s.basePath, "results", name)
}

func (s *ResultStore) write(path string, payload []byte, once bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.UpstreamError("create results directory", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if once {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if once && errors.Is(err, fs.ErrExist) {
			return err
		}
		return utils.UpstreamError("open result file", err)
	}

	if _, err := file.Write(payload); err != nil {
		file.Close()
		return utils.UpstreamError("write result file", err)
	}
	if err := file.Close(); err != nil {
		return utils.UpstreamError("close result file", err)
	}
	return nil
}
