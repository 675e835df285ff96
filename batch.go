package sqlitesec

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ParallelConfig controls how many files a batch operation processes at
// once. Key derivation dominates the cost of each file, so batches scale
// with the number of CPUs.
type ParallelConfig struct {
	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinFilesForParallel is the minimum batch size to start workers for.
	// Smaller batches are processed sequentially. Defaults to 2.
	MinFilesForParallel int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinFilesForParallel < 0 {
		return errors.New("parallel min files threshold cannot be negative")
	}
	return nil
}

// DefaultParallelConfig returns the default parallel processing configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers:          runtime.NumCPU(),
		MinFilesForParallel: 2,
	}
}

// BatchError collects the per-file failures of a batch operation. Files
// not listed were processed successfully.
type BatchError struct {
	Operation string
	Failed    map[string]error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s failed for %d file(s): %v", e.Operation, len(e.Failed), e.Unwrap())
}

// Unwrap joins the per-file errors so errors.Is and errors.As see each one
func (e *BatchError) Unwrap() error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EncryptFiles encrypts every named file in place. A failure on one file
// does not stop the others; all failures are returned in a *BatchError.
func (t *Transformer) EncryptFiles(names []string, config ParallelConfig) error {
	return t.forEachFile("encrypt", names, config, t.EncryptFile)
}

// DecryptFiles decrypts every named file in place, see EncryptFiles
func (t *Transformer) DecryptFiles(names []string, config ParallelConfig) error {
	return t.forEachFile("decrypt", names, config, func(name string) error {
		_, err := t.DecryptFile(name)
		return err
	})
}

func (t *Transformer) forEachFile(operation string, names []string, config ParallelConfig, fn func(name string) error) error {
	if err := config.Validate(); err != nil {
		return NewValidationError("parallel", config, err.Error())
	}
	if len(names) == 0 {
		return nil
	}

	// Duplicate names would race on the same file
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return NewValidationError("names", name, "file listed more than once")
		}
		seen[name] = true
	}

	numWorkers := config.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(names) {
		numWorkers = len(names)
	}

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	record := func(name string, err error) {
		mu.Lock()
		failed[name] = err
		mu.Unlock()
	}

	if len(names) < config.MinFilesForParallel || numWorkers == 1 {
		numWorkers = 1
		for _, name := range names {
			if err := fn(name); err != nil {
				record(name, err)
			}
		}
	} else {
		var wg sync.WaitGroup
		jobs := make(chan string, len(names))

		for w := 0; w < numWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for name := range jobs {
					func() {
						defer func() {
							if r := recover(); r != nil {
								record(name, fmt.Errorf("panic in %s worker: %v", operation, r))
							}
						}()
						if err := fn(name); err != nil {
							record(name, err)
						}
					}()
				}
			}()
		}

		for _, name := range names {
			jobs <- name
		}
		close(jobs)
		wg.Wait()
	}

	if len(failed) > 0 {
		t.logger.Warn("batch finished with failures",
			"operation", operation,
			"files", len(names),
			"failed", len(failed),
		)
		return &BatchError{Operation: operation, Failed: failed}
	}

	t.logger.Info("batch finished",
		"operation", operation,
		"files", len(names),
		"workers", numWorkers,
	)
	return nil
}
