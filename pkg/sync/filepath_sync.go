package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/store"
)

// FilePathSync loads a flag document, and optionally a bandit document, from
// local files. Files are watched for changes and can additionally be reloaded on
// a cron schedule.
type FilePathSync struct {
	FlagsPath   string
	BanditsPath string
	// Resync is a cron spec such as "@every 1m". Empty disables periodic reloads.
	Resync string
	Logger *log.Entry
}

func (fs *FilePathSync) logger() *log.Entry {
	if fs.Logger == nil {
		return log.WithField("component", "filepath-sync")
	}
	return fs.Logger
}

func (fs *FilePathSync) Fetch(_ context.Context) (*store.Configuration, error) {
	if fs.FlagsPath == "" {
		return nil, errors.New("no flag configuration path set")
	}
	rawFlags, err := os.ReadFile(fs.FlagsPath)
	if err != nil {
		return nil, err
	}
	flags, err := parseFlags(rawFlags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fs.FlagsPath, err)
	}

	var bandits *model.BanditResponse
	if fs.BanditsPath != "" {
		rawBandits, err := os.ReadFile(fs.BanditsPath)
		if err != nil {
			return nil, err
		}
		bandits, err = parseBandits(rawBandits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fs.BanditsPath, err)
		}
	}
	return store.FromServerResponse(flags, bandits, fs.logger()), nil
}

func parseFlags(raw []byte) (model.UniversalFlagConfig, error) {
	if err := validate(flagSchemaLoader, raw); err != nil {
		return model.UniversalFlagConfig{}, err
	}
	return store.ParseUniversalFlagConfig(raw)
}

func parseBandits(raw []byte) (*model.BanditResponse, error) {
	if err := validate(banditSchemaLoader, raw); err != nil {
		return nil, err
	}
	return store.ParseBanditResponse(raw)
}

// Load fetches once and swaps the result into holder. A failed fetch leaves the
// previous Configuration in place.
func (fs *FilePathSync) Load(ctx context.Context, holder *store.Holder) error {
	cfg, err := fs.Fetch(ctx)
	if err != nil {
		return err
	}
	notifications := holder.Swap(cfg)
	for _, n := range notifications {
		fs.logger().WithFields(log.Fields{
			"type": n.Type,
			"flag": n.FlagKey,
		}).Debug("flag configuration changed")
	}
	fs.logger().WithFields(log.Fields{
		"flags":   len(cfg.FlagKeys()),
		"changes": len(notifications),
	}).Info("flag configuration loaded")
	return nil
}

// Sync performs the initial Load, returning its error, and then reloads on
// file changes and on the Resync schedule until ctx is done.
func (fs *FilePathSync) Sync(ctx context.Context, holder *store.Holder) error {
	if err := fs.Load(ctx, holder); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watch the parent directories: replacing a file drops a watch on the
	// file itself, the directory watch survives it
	watched := map[string]struct{}{}
	for _, p := range fs.paths() {
		p = filepath.Clean(p)
		watched[p] = struct{}{}
		dir := filepath.Dir(p)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("unable to watch %s: %w", dir, err)
		}
	}

	reload := make(chan struct{}, 1)
	if fs.Resync != "" {
		c := cron.New()
		if err := c.AddFunc(fs.Resync, func() { trigger(reload) }); err != nil {
			return fmt.Errorf("invalid resync schedule %q: %w", fs.Resync, err)
		}
		c.Start()
		defer c.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, ok := watched[filepath.Clean(event.Name)]; !ok {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				trigger(reload)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				fs.logger().WithField("path", event.Name).Warn("flag file removed, keeping previous configuration until it is recreated")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fs.logger().WithError(err).Error("file watcher error")
		case <-reload:
			if err := fs.Load(ctx, holder); err != nil {
				fs.logger().WithError(err).Error("unable to reload flag configuration, keeping previous")
			}
		}
	}
}

func (fs *FilePathSync) paths() []string {
	if fs.BanditsPath == "" {
		return []string{fs.FlagsPath}
	}
	return []string{fs.FlagsPath, fs.BanditsPath}
}

func trigger(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
