package configuration

type ConfigProvider interface {
	GetApplication() *AppConfigurationProperties
	GetSimulation() *SimulationConfigurationProperties
	GetTransport() *TransportConfigurationProperties
	GetAP() *APConfigurationProperties
	GetCP() *CPConfigurationProperties
	GetCA() *CAConfigurationProperties
}

type AppConfigProvider struct {
	config *Properties
}

func NewProvider(cfg *Properties) *AppConfigProvider {
	return &AppConfigProvider{config: cfg}
}

func (c *AppConfigProvider) GetApplication() *AppConfigurationProperties {
	return &c.config.App
}

func (c *AppConfigProvider) GetSimulation() *SimulationConfigurationProperties {
	return &c.config.Simulation
}

func (c *AppConfigProvider) GetTransport() *TransportConfigurationProperties {
	return &c.config.Transport
}

func (c *AppConfigProvider) GetAP() *APConfigurationProperties {
	return &c.config.AP
}

func (c *AppConfigProvider) GetCP() *CPConfigurationProperties {
	return &c.config.CP
}

func (c *AppConfigProvider) GetCA() *CAConfigurationProperties {
	return &c.config.CA
}
