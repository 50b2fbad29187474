package core

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the configuration file whenever it changes on disk
// and hands the result to the control thread through Updates.
type ConfigWatcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	updates  chan *Config
	done     chan struct{}
	wg       sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool
}

func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory, editors usually replace the file instead of writing it
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	cw := &ConfigWatcher{
		path:     abs,
		fsnotify: fsWatch,
		updates:  make(chan *Config, 1),
		done:     make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.start()
	return cw, nil
}

// Updates delivers freshly loaded configurations. Only the most recent one is
// kept if the reader falls behind.
func (cw *ConfigWatcher) Updates() <-chan *Config {
	return cw.updates
}

// Poll returns the pending configuration, if any, without blocking.
func (cw *ConfigWatcher) Poll() (*Config, bool) {
	select {
	case cfg, ok := <-cw.updates:
		return cfg, ok && cfg != nil
	default:
		return nil, false
	}
}

func (cw *ConfigWatcher) Close() error {
	cw.mutex.Lock()
	if cw.isClosed {
		cw.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	cw.isClosed = true
	cw.mutex.Unlock()

	close(cw.done)
	cw.wg.Wait()
	return nil
}

func (cw *ConfigWatcher) start() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogWarn("ignoring config change: %s", err)
				continue
			}
			cw.publish(cfg)

		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			LogError("config watcher: %s", err)

		case <-cw.done:
			cw.fsnotify.Close()
			close(cw.updates)
			return
		}
	}
}

func (cw *ConfigWatcher) publish(cfg *Config) {
	for {
		select {
		case cw.updates <- cfg:
			return
		default:
		}
		// drop the stale pending config
		select {
		case <-cw.updates:
		default:
		}
	}
}
