package config

const (
	defaultStagingDir      = "~/.local/share/curator/staging"
	defaultLibraryDir      = "~/library"
	defaultLogDir          = "~/.local/share/curator/logs"
	defaultMoviesDir       = "movies"
	defaultTVDir           = "tv"
	defaultMovieTemplate   = "{title} ({year})/{title} ({year})"
	defaultEpisodeTemplate = "{title}/Season {season}/{title} - S{season}E{episode}"
	defaultProviderBaseURL = "https://api.themoviedb.org/3"
	defaultProviderLang    = "en-US"
	defaultProviderTimeout = 30
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Library: Library{
			MoviesDir:       defaultMoviesDir,
			TVDir:           defaultTVDir,
			MovieTemplate:   defaultMovieTemplate,
			EpisodeTemplate: defaultEpisodeTemplate,
		},
		Provider: Provider{
			BaseURL:        defaultProviderBaseURL,
			Language:       defaultProviderLang,
			TimeoutSeconds: defaultProviderTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
