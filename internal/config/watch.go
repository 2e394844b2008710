package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("courier/config")

// Watch re-reads the config file whenever it changes and delivers the new
// retention policy to onReload. Only retention windows reload live; server
// and limit fields keep their startup values. Watch returns once the watcher
// is installed; it stops when ctx ends. A missing or unparseable rewrite is
// logged and skipped, never fatal.
func Watch(ctx context.Context, path string, onReload func(Retention)) error {
	if path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors and config tooling replace
	// the file by rename, which drops a file-level watch.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	base := filepath.Base(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warnf("config reload skipped: %v", err)
					continue
				}
				log.Infof("config reloaded: peer_ttl=%ds signal=%ds call=%ds mailbox=%ds",
					cfg.Retention.PeerTTLSec, cfg.Retention.SignalSec,
					cfg.Retention.CallSec, cfg.Retention.MailboxSec)
				onReload(cfg.Retention)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher: %v", err)
			}
		}
	}()
	return nil
}
