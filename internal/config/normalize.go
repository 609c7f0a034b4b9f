package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeChat()
	if err := c.normalizeWeb(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir()
	}
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() error {
	e := &c.Engine
	e.Command = strings.TrimSpace(e.Command)
	if e.Command == "" {
		e.Command = DefaultEngineCommand(runtime.GOOS)
	}
	e.Language = strings.TrimSpace(e.Language)
	if e.Language == "" {
		e.Language = defaultEngineLanguage
	}
	e.Model = strings.TrimSpace(e.Model)
	if e.Model == "" {
		e.Model = defaultEngineModel
	}
	if strings.TrimSpace(e.JobPrefix) == "" {
		e.JobPrefix = defaultJobPrefix
	}
	if strings.TrimSpace(e.DefaultExt) == "" {
		e.DefaultExt = defaultAudioExt
	}

	var err error
	if strings.TrimSpace(e.Dir) == "" {
		e.Dir = filepath.Join(c.Paths.DataDir, "whisper")
	}
	if e.Dir, err = expandPath(strings.TrimSpace(e.Dir)); err != nil {
		return fmt.Errorf("engine.dir: %w", err)
	}
	if strings.TrimSpace(e.ModelDir) == "" {
		e.ModelDir = filepath.Join(c.Paths.DataDir, "whisper-models")
	}
	if e.ModelDir, err = expandPath(strings.TrimSpace(e.ModelDir)); err != nil {
		return fmt.Errorf("engine.model_dir: %w", err)
	}
	if e.StagingDir, err = expandPath(strings.TrimSpace(e.StagingDir)); err != nil {
		return fmt.Errorf("engine.staging_dir: %w", err)
	}

	dirs := make([]string, 0, len(e.ExtraPathDirs))
	for _, dir := range e.ExtraPathDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("engine.extra_path_dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	e.ExtraPathDirs = dirs
	return nil
}

func (c *Config) normalizeChat() {
	c.Chat.BroadcastAddr = strings.TrimSpace(c.Chat.BroadcastAddr)
	if c.Chat.BroadcastAddr == "" {
		c.Chat.BroadcastAddr = defaultBroadcastAddr
	}
	c.Chat.DefaultName = strings.TrimSpace(c.Chat.DefaultName)
	if c.Chat.DefaultName == "" {
		c.Chat.DefaultName = defaultChatName
	}
	if c.Chat.MaxTextLength <= 0 {
		c.Chat.MaxTextLength = defaultChatMaxText
	}
}

func (c *Config) normalizeWeb() error {
	c.Web.Bind = strings.TrimSpace(c.Web.Bind)
	if c.Web.Bind == "" {
		c.Web.Bind = defaultWebBind
	}
	if strings.TrimSpace(c.Web.Root) == "" {
		c.Web.Root = defaultWebRoot
	}
	var err error
	if c.Web.Root, err = expandPath(strings.TrimSpace(c.Web.Root)); err != nil {
		return fmt.Errorf("web.root: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
