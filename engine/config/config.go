package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

type ConfigSettings struct {
	// General service settings
	RequiredSettings RequiredConfig `toml:"RequiredSettings,omitempty" json:"RequiredSettings,omitempty"`

	// Optional settings
	SslSettings SslConfig `toml:"SslSettings,omitempty" json:"SslSettings,omitempty"`

	MiscSettings MiscConfig `toml:"MiscSettings,omitempty" json:"MiscSettings,omitempty"`
}

type RequiredConfig struct {
	EventName        string
	BindAddress      string
	DBConnectURL     string
	RedisAddress     string
	SubmissionSecret string
	AdminToken       string
	GithubToken      string
	GithubOwner      string
	OpenAIKey        string
}

type SslConfig struct {
	HttpsCert string `toml:"httpscert,omitempty" json:"httpscert,omitempty"`
	HttpsKey  string `toml:"httpskey,omitempty" json:"httpskey,omitempty"`
}

type MiscConfig struct {
	Port     int
	PageName string

	StartPaused bool

	// Build settings
	BuildTimeout  int // seconds a runner gets before the job is requeued
	PollInterval  int // seconds between dispatcher sweeps
	MaxAttachment int64

	// Receipt delivery settings
	DeliveryRetries int
	DeliveryBackoff int // seconds

	// Generation settings
	OpenAIModel   string
	OpenAIBaseURL string
	AttachmentDir string
}

// Load in a config
func (conf *ConfigSettings) SetConfig(path string) error {
	tempConf := ConfigSettings{}
	fileContent, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("configuration file (%s) not found: %v", path, err)
	}

	if md, err := toml.Decode(string(fileContent), &tempConf); err != nil {
		return err
	} else {
		for _, undecoded := range md.Undecoded() {
			slog.Warn("undecoded configuration key \"" + undecoded.String() + "\" will not be used.")
		}
	}

	// check the configuration and set defaults
	if err := checkConfig(&tempConf); err != nil {
		return fmt.Errorf("configuration file (%s) is invalid: %v", path, err)
	}

	// if we're here, the config is valid
	*conf = tempConf

	return nil
}

// general error checking
func checkConfig(conf *ConfigSettings) error {
	var errResult error

	// required settings

	if conf.RequiredSettings.EventName == "" {
		errResult = errors.Join(errResult, errors.New("event title blank or not specified"))
	}

	if conf.RequiredSettings.BindAddress == "" {
		errResult = errors.Join(errResult, errors.New("no bind address specified"))
	}

	if conf.RequiredSettings.DBConnectURL == "" {
		errResult = errors.Join(errResult, errors.New("no db connect url specified"))
	}

	if conf.RequiredSettings.RedisAddress == "" {
		errResult = errors.Join(errResult, errors.New("no redis address specified"))
	}

	if conf.RequiredSettings.SubmissionSecret == "" {
		errResult = errors.Join(errResult, errors.New("no submission secret specified"))
	}

	if conf.RequiredSettings.AdminToken == "" {
		errResult = errors.Join(errResult, errors.New("no admin token specified"))
	}

	if conf.RequiredSettings.GithubToken == "" {
		errResult = errors.Join(errResult, errors.New("no github token specified"))
	}

	if conf.RequiredSettings.GithubOwner == "" {
		errResult = errors.Join(errResult, errors.New("no github owner specified"))
	}

	if conf.RequiredSettings.OpenAIKey == "" {
		errResult = errors.Join(errResult, errors.New("no openai api key specified"))
	}

	// optional settings

	if conf.SslSettings != (SslConfig{}) {
		if conf.SslSettings.HttpsCert == "" || conf.SslSettings.HttpsKey == "" {
			errResult = errors.Join(errResult, errors.New("https requires a cert and key pair"))
		}
	}

	if conf.MiscSettings.Port == 0 {
		if conf.SslSettings != (SslConfig{}) {
			conf.MiscSettings.Port = 443
		} else {
			conf.MiscSettings.Port = 80
		}
	}

	if conf.MiscSettings.PageName == "" {
		conf.MiscSettings.PageName = conf.RequiredSettings.EventName
	}

	if conf.MiscSettings.BuildTimeout == 0 {
		conf.MiscSettings.BuildTimeout = 300
	}

	if conf.MiscSettings.PollInterval == 0 {
		conf.MiscSettings.PollInterval = 5
	}

	if conf.MiscSettings.PollInterval >= conf.MiscSettings.BuildTimeout {
		errResult = errors.Join(errResult, errors.New("poll interval must be smaller than build timeout"))
	}

	if conf.MiscSettings.MaxAttachment == 0 {
		conf.MiscSettings.MaxAttachment = 10 << 20
	}

	if conf.MiscSettings.DeliveryRetries == 0 {
		conf.MiscSettings.DeliveryRetries = 3
	}

	if conf.MiscSettings.DeliveryBackoff == 0 {
		conf.MiscSettings.DeliveryBackoff = 5
	}

	if conf.MiscSettings.OpenAIModel == "" {
		conf.MiscSettings.OpenAIModel = "gpt-4o"
	}

	if conf.MiscSettings.AttachmentDir == "" {
		conf.MiscSettings.AttachmentDir = os.TempDir() + "/pagesmith_attachments"
	}

	// errResult is nil by default if no errors occured
	return errResult
}
