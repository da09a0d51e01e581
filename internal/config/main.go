package config

import "fmt"

type RunningEnvironment string

const Development RunningEnvironment = "development"
const Production RunningEnvironment = "production"

type Config struct {
	RunningEnvironment RunningEnvironment
	DebugMode          bool
	Client             ClientConfig
	Credentials        CredentialsConfig
	Redis              RedisConfig
	Refresher          RefresherConfig
	Monitoring         MonitoringConfig
	MockBackend        MockBackendConfig
}

func (c *Config) Validate() error {
	if c.RunningEnvironment != Development && c.RunningEnvironment != Production {
		return fmt.Errorf("unknown running environment %q (must be one of development, production)", c.RunningEnvironment)
	}
	err := c.Client.Validate()
	if err != nil {
		return err
	}
	err = c.Credentials.Validate(c.RunningEnvironment)
	if err != nil {
		return err
	}
	if c.Credentials.Type == CredentialStoreTypeRedis {
		err = c.Redis.Validate()
		if err != nil {
			return err
		}
	}
	err = c.Refresher.Validate()
	if err != nil {
		return err
	}
	err = c.MockBackend.Validate()
	if err != nil {
		return err
	}
	return nil
}
