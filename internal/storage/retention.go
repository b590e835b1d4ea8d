package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PurgeExpired scans dataDir and removes .nf snapshots older than the
// retention window. Files with unexpected names are left alone.
func PurgeExpired(dataDir string, retention time.Duration, log zerolog.Logger) {
	if retention <= 0 {
		return
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Error().Err(err).Str("dir", dataDir).Msg("retention sweep failed to read data dir")
		return
	}

	threshold := time.Now().Add(-retention).UnixNano()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".nf") {
			continue
		}
		ts, err := extractTimestamp(entry.Name())
		if err != nil {
			continue
		}
		if ts < threshold {
			path := filepath.Join(dataDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Error().Err(err).Str("file", entry.Name()).Msg("failed to delete expired snapshot")
			} else {
				log.Info().Str("file", entry.Name()).Msg("expired snapshot deleted")
			}
		}
	}
}

func extractTimestamp(filename string) (int64, error) {
	// flow_1735230000000000000.nf
	base := strings.TrimSuffix(filename, ".nf")
	base = strings.TrimPrefix(base, "flow_")
	return strconv.ParseInt(base, 10, 64)
}
