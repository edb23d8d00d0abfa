package connection

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
)

// Config holds what an HTTPConnection needs to reach the content API.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     logger.Logger
	PageSize   int
}

// NewConfig creates a new Config for the API endpoint specified by the URL,
// such as "https://site-api.example.com".
// It is not absolutely necessary to create a Config using this function,
// but it fills every default the connection relies on.
func NewConfig(u *url.URL, token string) *Config {
	return &Config{
		BaseURL: strings.TrimRight(fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path), "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Logger:   logger.Nop{},
		PageSize: constants.DefaultPageSize,
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return constants.ErrNoBaseURL
	}
	if c.Token == "" {
		return constants.ErrNoToken
	}
	return nil
}
