package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch re-reads the config file whenever it changes and calls onReload with
// the fresh config. Only fields safe to swap at runtime (webhook target, OCR
// language) should be consumed by the callback; the admission limit stays
// fixed for the life of the process. The returned stop function closes the
// watcher.
//
// The watch is placed on the containing directory, not the file itself:
// editors and ConfigMap updates replace the file by rename, which would
// invalidate a watch on the path. Events are filtered to the config
// filename, and a Create of that name (the rename landing) reloads just
// like an in-place Write.
func Watch(path string, onReload func(*Config)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	name := filepath.Base(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous")
					continue
				}
				log.Info().Str("path", path).Msg("config reloaded")
				onReload(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return func() { _ = w.Close() }, nil
}
