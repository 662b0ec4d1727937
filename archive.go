package dirty

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kjk/dirty/fileutil"
)

// archiveLog compresses the current log file into ArchiveDir as
// <base>-<unix-ms>.log.zst. Called from Reset with s.mu held, after
// the write handle was closed and before the file is deleted.
// A missing log (nothing was ever written) is not an error.
func (s *Store) archiveLog() error {
	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(s.ArchiveDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	base := filepath.Base(s.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ms := time.Now().UTC().UnixMilli()
	dst := filepath.Join(s.ArchiveDir, fmt.Sprintf("%s-%d.log.zst", base, ms))
	if err := fileutil.CompressFile(dst, s.Path); err != nil {
		return fmt.Errorf("failed to archive %s: %w", s.Path, err)
	}
	return nil
}
