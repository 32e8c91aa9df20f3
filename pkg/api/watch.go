package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ScriptExt is the extension of deployable script files.
const ScriptExt = ".big"

var validScriptName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// scriptName maps a file path to its script name, or "" when the file is
// not a deployable script.
func scriptName(path string) string {
	base := filepath.Base(path)
	if filepath.Ext(base) != ScriptExt {
		return ""
	}
	name := strings.TrimSuffix(base, ScriptExt)
	if !validScriptName.MatchString(name) || len(name) > 128 {
		return ""
	}
	return name
}

// deployFile reads path and creates or replaces the script it holds.
func (s *Server) deployFile(path string) error {
	name := scriptName(path)
	if name == "" {
		return fmt.Errorf("skipping %q: not a %s file with a valid name", filepath.Base(path), ScriptExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	if diag, ok := validateSource(string(data)); !ok {
		return fmt.Errorf("rejecting %q: %s", path, diag)
	}
	if _, created := s.store.PutScript(name, string(data)); created {
		log.Printf("Loaded script %q from %s", name, filepath.Base(path))
	} else {
		log.Printf("Reloaded script %q from %s", name, filepath.Base(path))
	}
	return nil
}

// LoadDir deploys every .big file in dir. The file name without extension
// becomes the script name.
func (s *Server) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading scripts directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ScriptExt {
			continue
		}
		if err := s.deployFile(filepath.Join(dir, entry.Name())); err != nil {
			log.Printf("Warning: %v", err)
			continue
		}
		loaded++
	}

	log.Printf("Loaded %d script(s) from %s", loaded, dir)
	return nil
}

// WatchDir keeps the store in sync with dir until ctx is done: written
// scripts are redeployed and removed ones are deleted.
func (s *Server) WatchDir(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.handleEvent(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (s *Server) handleEvent(event fsnotify.Event) {
	name := scriptName(event.Name)
	if name == "" {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if err := s.store.DeleteScript(name); err == nil {
			log.Printf("Removed script %q", name)
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if err := s.deployFile(event.Name); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
}
