package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/protoverse/protomerge/pkg/diff"
)

// debounceInterval coalesces editor write bursts into one re-run.
const debounceInterval = 300 * time.Millisecond

// watchDiff re-runs the comparison whenever a proto file under either
// directory changes. It blocks until ctx is cancelled or the watcher fails.
func watchDiff(ctx context.Context, opts *diffOptions, formatter diff.Formatter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range []string{opts.oldDir, opts.newDir} {
		if err := addRecursive(watcher, dir); err != nil {
			return err
		}
	}

	runOnce := func() {
		if err := runDiffOnce(ctx, opts, formatter); err != nil {
			switch err.(type) {
			case breakingError:
				logrus.Warn(err)
			default:
				logrus.WithError(err).Error("comparison failed")
			}
		}
	}

	runOnce()
	logrus.WithFields(logrus.Fields{
		"old": opts.oldDir,
		"new": opts.newDir,
	}).Info("watching for changes")

	var debounce *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			// New subdirectories join the watch set.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(watcher, event.Name)
				}
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			logrus.Debug("schema change detected")
			runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("watch error")
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// relevantEvent filters out noise: only proto files and directory creation
// trigger a re-run.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	if strings.HasSuffix(event.Name, ".proto") {
		return true
	}
	if event.Op.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		return err == nil && info.IsDir()
	}
	return false
}
