package settings

import (
	"bufio"
	"cuecard/app/config"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service is a small key/value store persisted as JSON lines.
type Service struct {
	path string
	mu   sync.RWMutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(cfg.Settings.Path)
}

func NewService(path string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, oops.Errorf("failed to create settings dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, oops.Errorf("failed to open settings file: %w", err)
	}
	defer file.Close()

	return &Service{
		path: path,
	}, nil
}

func (s *Service) load() (map[string]string, error) {
	file, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, oops.Errorf("failed to open settings file: %w", err)
	}
	defer file.Close()

	values := make(map[string]string)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item jsonLineItem
		if err = json.Unmarshal([]byte(line), &item); err != nil {
			return nil, oops.Errorf("failed to parse JSON line: %w", err)
		}

		values[item.Key] = item.Value
	}

	if err = scanner.Err(); err != nil {
		return nil, oops.Errorf("error reading settings file: %w", err)
	}

	return values, nil
}

// save replaces the file through a rename so a crash never leaves it half written.
func (s *Service) save(values map[string]string) error {
	tmpPath := s.path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return oops.Errorf("failed to create settings file: %w", err)
	}

	writer := bufio.NewWriter(file)

	for _, key := range sortedKeys(values) {
		data, err := json.Marshal(jsonLineItem{Key: key, Value: values[key]})
		if err != nil {
			file.Close()
			return oops.Errorf("failed to marshal setting: %w", err)
		}
		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			file.Close()
			return oops.Errorf("failed to write setting: %w", err)
		}
	}

	if err = writer.Flush(); err != nil {
		file.Close()
		return oops.Errorf("failed to flush writer: %w", err)
	}
	if err = file.Close(); err != nil {
		return oops.Errorf("failed to close settings file: %w", err)
	}

	if err = os.Rename(tmpPath, s.path); err != nil {
		return oops.Errorf("failed to replace settings file: %w", err)
	}

	return nil
}

func (s *Service) update(fn func(values map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	fn(values)

	return s.save(values)
}

func (s *Service) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}

	return values[key], nil
}

// Set stores value under key, an empty value removes the key.
func (s *Service) Set(key, value string) error {
	return s.SetMany(map[string]string{key: value})
}

func (s *Service) SetMany(updates map[string]string) error {
	err := s.update(func(values map[string]string) {
		for key, value := range updates {
			if value == "" {
				delete(values, key)
				continue
			}

			values[key] = value
		}
	})
	if err != nil {
		return err
	}

	slog.Info("Settings updated", "keys", sortedKeys(updates))

	return nil
}

func (s *Service) All() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return nil, err
	}

	return maps.Clone(values), nil
}

func (s *Service) APIKey() (string, error) {
	return s.Get(KeyGeminiAPIKey)
}

func (s *Service) SetAPIKey(key string) error {
	return s.Set(KeyGeminiAPIKey, strings.TrimSpace(key))
}

func (s *Service) CustomPrompt(persona string) (string, error) {
	return s.Get(CustomPromptKey(persona))
}

func (s *Service) SetCustomPrompt(persona, text string) error {
	return s.Set(CustomPromptKey(persona), text)
}

// RecordSession adds a finished session to the usage counters.
func (s *Service) RecordSession(duration time.Duration) error {
	return s.update(func(values map[string]string) {
		usage := usageOf(values)
		usage.TotalSessions++
		usage.TotalSeconds += int64(duration.Seconds())

		values[KeyTotalSessions] = strconv.FormatInt(usage.TotalSessions, 10)
		values[KeyTotalSeconds] = strconv.FormatInt(usage.TotalSeconds, 10)
	})
}

func (s *Service) Usage() (Usage, error) {
	values, err := s.All()
	if err != nil {
		return Usage{}, err
	}

	return usageOf(values), nil
}

func usageOf(values map[string]string) Usage {
	sessions, _ := strconv.ParseInt(values[KeyTotalSessions], 10, 64)
	seconds, _ := strconv.ParseInt(values[KeyTotalSeconds], 10, 64)

	return Usage{
		TotalSessions: sessions,
		TotalSeconds:  seconds,
	}
}
