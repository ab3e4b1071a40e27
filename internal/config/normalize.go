package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Library.MoviesDir = strings.TrimSpace(c.Library.MoviesDir)
	c.Library.TVDir = strings.TrimSpace(c.Library.TVDir)
	c.Library.MovieTemplate = strings.TrimSpace(c.Library.MovieTemplate)
	c.Library.EpisodeTemplate = strings.TrimSpace(c.Library.EpisodeTemplate)
	if c.Library.MovieTemplate == "" {
		c.Library.MovieTemplate = defaultMovieTemplate
	}
	if c.Library.EpisodeTemplate == "" {
		c.Library.EpisodeTemplate = defaultEpisodeTemplate
	}

	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeout
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
