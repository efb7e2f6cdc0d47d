package main

import (
	"os"
	"strings"
	"sync"

	"trustlabel/internal/client"
	"trustlabel/internal/config"
)

const tokenEnvVar = "TRUSTLABEL_TOKEN"

type commandContext struct {
	addressFlag *string
	tokenFlag   *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addressFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		addressFlag: addressFlag,
		tokenFlag:   tokenFlag,
		configFlag:  configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		return strings.TrimSpace(*c.tokenFlag)
	}
	return strings.TrimSpace(os.Getenv(tokenEnvVar))
}

func (c *commandContext) apiClient() (*client.Client, error) {
	address := ""
	if c.addressFlag != nil {
		address = strings.TrimSpace(*c.addressFlag)
	}
	if address == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		address = cfg.Paths.APIBind
	}
	return client.New(address, c.token()), nil
}
