package models

import (
	"encoding/json"
	"fmt"
)

// SpiderType tags one adapter implementation per publishing platform
type SpiderType string

const (
	SpiderDoem                 SpiderType = "doem"
	SpiderDosp                 SpiderType = "dosp"
	SpiderInstar               SpiderType = "instar"
	SpiderDiof                 SpiderType = "diof"
	SpiderADiariosV1           SpiderType = "adiarios_v1"
	SpiderADiariosV2           SpiderType = "adiarios_v2"
	SpiderSigpub               SpiderType = "sigpub"
	SpiderDomSC                SpiderType = "dom_sc"
	SpiderAmmMT                SpiderType = "amm-mt"
	SpiderDiarioBA             SpiderType = "diario-ba"
	SpiderBarcoDigital         SpiderType = "barco_digital"
	SpiderSiganet              SpiderType = "siganet"
	SpiderDiarioOficialBR      SpiderType = "diario_oficial_br"
	SpiderModernizacao         SpiderType = "modernizacao"
	SpiderAplus                SpiderType = "aplus"
	SpiderDioenet              SpiderType = "dioenet"
	SpiderAdministracaoPublica SpiderType = "administracao_publica"
	SpiderPtio                 SpiderType = "ptio"
	SpiderAtendeV2             SpiderType = "atende-v2"
	SpiderMunicipioOnline      SpiderType = "municipio-online"
)

// SpiderTypes lists every known platform tag in stable order
var SpiderTypes = []SpiderType{
	SpiderDoem, SpiderDosp, SpiderInstar, SpiderDiof,
	SpiderADiariosV1, SpiderADiariosV2, SpiderSigpub, SpiderDomSC,
	SpiderAmmMT, SpiderDiarioBA, SpiderBarcoDigital, SpiderSiganet,
	SpiderDiarioOficialBR, SpiderModernizacao, SpiderAplus, SpiderDioenet,
	SpiderAdministracaoPublica, SpiderPtio, SpiderAtendeV2, SpiderMunicipioOnline,
}

// IsValid reports whether the tag names a known platform
func (t SpiderType) IsValid() bool {
	for _, known := range SpiderTypes {
		if t == known {
			return true
		}
	}
	return false
}

// UsesBrowser reports whether the adapter depends on a rendering browser and
// therefore runs under the extended crawl deadline.
func (t SpiderType) UsesBrowser() bool {
	return t == SpiderADiariosV2
}

// PlatformConfig is the tagged union carried by a spider configuration.
// Each variant holds only the fields its adapter consumes; the `type`
// discriminator must match the registry entry's spiderType.
type PlatformConfig interface {
	Kind() SpiderType
}

// DoemConfig drives the DOEM paginated HTML index
type DoemConfig struct {
	Type          SpiderType `json:"type"`
	StateCityPath string     `json:"stateCityPath"` // e.g. "ba/salvador"
}

func (c DoemConfig) Kind() SpiderType { return SpiderDoem }

// DospConfig drives the DOSP journal/section API
type DospConfig struct {
	Type    SpiderType `json:"type"`
	Code    string     `json:"code"`    // tenant journal code
	Section string     `json:"section"` // API section slug
}

func (c DospConfig) Kind() SpiderType { return SpiderDosp }

// InstarConfig drives the Instar paginated listing
type InstarConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c InstarConfig) Kind() SpiderType { return SpiderInstar }

// DiofConfig drives the DIOF website API
type DiofConfig struct {
	Type    SpiderType `json:"type"`
	Website string     `json:"website"`
}

func (c DiofConfig) Kind() SpiderType { return SpiderDiof }

// ADiariosV1Config drives the legacy ADiarios HTML listing
type ADiariosV1Config struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c ADiariosV1Config) Kind() SpiderType { return SpiderADiariosV1 }

// ADiariosV2Config drives the JS-only ADiarios layout through a browser
type ADiariosV2Config struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c ADiariosV2Config) Kind() SpiderType { return SpiderADiariosV2 }

// SigpubConfig drives the SIGPub monthly calendar JSON
type SigpubConfig struct {
	Type        SpiderType `json:"type"`
	CalendarURL string     `json:"calendarUrl"`
	EntityID    string     `json:"entityId"`
}

func (c SigpubConfig) Kind() SpiderType { return SpiderSigpub }

// DomSCConfig drives the statewide DOM/SC aggregation
type DomSCConfig struct {
	Type       SpiderType `json:"type"`
	EntityName string     `json:"entityName"` // municipality label used by the search form
}

func (c DomSCConfig) Kind() SpiderType { return SpiderDomSC }

// AmmMTConfig drives the AMM-MT association journal
type AmmMTConfig struct {
	Type       SpiderType `json:"type"`
	EntityName string     `json:"entityName"`
}

func (c AmmMTConfig) Kind() SpiderType { return SpiderAmmMT }

// DiarioBAConfig drives the aggregated diario-ba form-post listing
type DiarioBAConfig struct {
	Type     SpiderType `json:"type"`
	CitySlug string     `json:"citySlug"`
}

func (c DiarioBAConfig) Kind() SpiderType { return SpiderDiarioBA }

// BarcoDigitalConfig drives the Barco Digital monthly calendar JSON
type BarcoDigitalConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c BarcoDigitalConfig) Kind() SpiderType { return SpiderBarcoDigital }

// SiganetConfig drives the Siganet listing
type SiganetConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c SiganetConfig) Kind() SpiderType { return SpiderSiganet }

// DiarioOficialBRConfig drives the diariooficial.com.br city pages
type DiarioOficialBRConfig struct {
	Type     SpiderType `json:"type"`
	CitySlug string     `json:"citySlug"`
}

func (c DiarioOficialBRConfig) Kind() SpiderType { return SpiderDiarioOficialBR }

// ModernizacaoConfig drives the Modernizacao tenant sites
type ModernizacaoConfig struct {
	Type   SpiderType `json:"type"`
	Domain string     `json:"domain"`
}

func (c ModernizacaoConfig) Kind() SpiderType { return SpiderModernizacao }

// AplusConfig drives the A+ form-post listing
type AplusConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c AplusConfig) Kind() SpiderType { return SpiderAplus }

// DioenetConfig drives the Dioenet listing with per-entry detail pages
type DioenetConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c DioenetConfig) Kind() SpiderType { return SpiderDioenet }

// AdministracaoPublicaConfig drives the Administracao Publica listing
type AdministracaoPublicaConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c AdministracaoPublicaConfig) Kind() SpiderType { return SpiderAdministracaoPublica }

// PtioConfig drives the PTIO listing
type PtioConfig struct {
	Type    SpiderType `json:"type"`
	BaseURL string     `json:"baseUrl"`
}

func (c PtioConfig) Kind() SpiderType { return SpiderPtio }

// AtendeV2Config drives the Atende.net v2 city subdomains
type AtendeV2Config struct {
	Type          SpiderType `json:"type"`
	CitySubdomain string     `json:"citySubdomain"`
}

func (c AtendeV2Config) Kind() SpiderType { return SpiderAtendeV2 }

// MunicipioOnlineConfig drives the Municipio Online state/city slugs
type MunicipioOnlineConfig struct {
	Type     SpiderType `json:"type"`
	StateUF  string     `json:"stateUf"`
	CitySlug string     `json:"citySlug"`
}

func (c MunicipioOnlineConfig) Kind() SpiderType { return SpiderMunicipioOnline }

// UnmarshalPlatformConfig decodes the tagged config variant for a platform.
// Unknown or mismatched discriminators are rejected.
func UnmarshalPlatformConfig(raw json.RawMessage) (PlatformConfig, error) {
	var probe struct {
		Type SpiderType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("platform config missing type discriminator: %w", err)
	}

	var cfg PlatformConfig
	switch probe.Type {
	case SpiderDoem:
		cfg = &DoemConfig{}
	case SpiderDosp:
		cfg = &DospConfig{}
	case SpiderInstar:
		cfg = &InstarConfig{}
	case SpiderDiof:
		cfg = &DiofConfig{}
	case SpiderADiariosV1:
		cfg = &ADiariosV1Config{}
	case SpiderADiariosV2:
		cfg = &ADiariosV2Config{}
	case SpiderSigpub:
		cfg = &SigpubConfig{}
	case SpiderDomSC:
		cfg = &DomSCConfig{}
	case SpiderAmmMT:
		cfg = &AmmMTConfig{}
	case SpiderDiarioBA:
		cfg = &DiarioBAConfig{}
	case SpiderBarcoDigital:
		cfg = &BarcoDigitalConfig{}
	case SpiderSiganet:
		cfg = &SiganetConfig{}
	case SpiderDiarioOficialBR:
		cfg = &DiarioOficialBRConfig{}
	case SpiderModernizacao:
		cfg = &ModernizacaoConfig{}
	case SpiderAplus:
		cfg = &AplusConfig{}
	case SpiderDioenet:
		cfg = &DioenetConfig{}
	case SpiderAdministracaoPublica:
		cfg = &AdministracaoPublicaConfig{}
	case SpiderPtio:
		cfg = &PtioConfig{}
	case SpiderAtendeV2:
		cfg = &AtendeV2Config{}
	case SpiderMunicipioOnline:
		cfg = &MunicipioOnlineConfig{}
	default:
		return nil, fmt.Errorf("unknown platform config type %q", probe.Type)
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", probe.Type, err)
	}
	return cfg, nil
}

// SpiderConfig is one registry entry: the stable city identifier plus the
// platform adapter selection and its variant configuration.
type SpiderConfig struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	TerritoryID string         `json:"territoryId"`
	SpiderType  SpiderType     `json:"spiderType"`
	StartDate   Date           `json:"startDate"`
	Config      PlatformConfig `json:"config"`
}

// spiderConfigShell mirrors SpiderConfig with the variant left raw
type spiderConfigShell struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TerritoryID string          `json:"territoryId"`
	SpiderType  SpiderType      `json:"spiderType"`
	StartDate   Date            `json:"startDate"`
	Config      json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the entry and dispatches the config variant on the
// spiderType tag. The variant's own discriminator must agree.
func (c *SpiderConfig) UnmarshalJSON(data []byte) error {
	var shell spiderConfigShell
	if err := json.Unmarshal(data, &shell); err != nil {
		return err
	}
	if !shell.SpiderType.IsValid() {
		return fmt.Errorf("spider %s: unknown spiderType %q", shell.ID, shell.SpiderType)
	}
	if !territoryIDPattern.MatchString(shell.TerritoryID) {
		return fmt.Errorf("spider %s: territoryId %q is not a 7-digit IBGE code", shell.ID, shell.TerritoryID)
	}

	var cfg PlatformConfig
	if len(shell.Config) > 0 {
		parsed, err := UnmarshalPlatformConfig(shell.Config)
		if err != nil {
			return fmt.Errorf("spider %s: %w", shell.ID, err)
		}
		if parsed.Kind() != shell.SpiderType {
			return fmt.Errorf("spider %s: config type %q does not match spiderType %q",
				shell.ID, parsed.Kind(), shell.SpiderType)
		}
		cfg = parsed
	}

	c.ID = shell.ID
	c.Name = shell.Name
	c.TerritoryID = shell.TerritoryID
	c.SpiderType = shell.SpiderType
	c.StartDate = shell.StartDate
	c.Config = cfg
	return nil
}

// StateCode returns the two-digit state prefix of the territory ID
func (c SpiderConfig) StateCode() string {
	if len(c.TerritoryID) < 2 {
		return ""
	}
	return c.TerritoryID[:2]
}
