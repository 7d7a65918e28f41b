package badgerstore

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxGCIterations bounds one GC round. Each RunValueLogGC call rewrites at
// most one log file.
const maxGCIterations = 10

// runGCLoop runs Badger's value log garbage collection periodically.
func (s *Storage) runGCLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCtx.Done():
			return
		case <-ticker.C:
			s.runGC()
		}
	}
}

// runGC performs one round of garbage collection, stopping early on
// shutdown or when there is nothing left to rewrite.
func (s *Storage) runGC() {
	rewritten := 0
	for range maxGCIterations {
		select {
		case <-s.shutdownCtx.Done():
			return
		default:
		}

		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			s.logger.Warn("badgerstore: GC error", "error", err)
			return
		}
		rewritten++
	}
	if rewritten > 0 {
		s.logger.Debug("badgerstore: GC completed", "rewritten", rewritten)
	}
}
