package eeprom

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes made to an image file by other processes, such as
// a provisioning tool dropping a new image in place.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	skip     func() bool // nil reports every change
	done     chan struct{}
}

// Watch starts watching the image at path. onChange is called from the
// watcher goroutine every time the file is written or replaced.
func Watch(path string, onChange func()) (*Watcher, error) {
	return watch(path, onChange, nil)
}

func watch(path string, onChange func(), skip func() bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("eeprom: create watcher: %w", err)
	}
	// Watch the directory: atomic replacement swaps the inode, which would
	// silently end a watch on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("eeprom: watch %s: %w", filepath.Dir(path), err)
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		onChange: onChange,
		skip:     skip,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if w.skip != nil && w.skip() {
					slog.Debug("eeprom: ignoring own image write", "path", w.path, "op", event.Op.String())
					continue
				}
				slog.Debug("eeprom: image changed", "path", w.path, "op", event.Op.String())
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("eeprom: watcher error", "err", err)
		}
	}
}
