package registry

import (
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/spiders"
)

// CreateSpider instantiates the adapter for a configuration. Construction
// performs no I/O; an unknown spiderType yields a typed UnknownSpider error.
func CreateSpider(cfg models.SpiderConfig, window models.DateRange, deps spiders.Deps) (spiders.Spider, error) {
	switch cfg.SpiderType {
	case models.SpiderDoem:
		return spiders.NewDoem(cfg, window, deps)
	case models.SpiderDosp:
		return spiders.NewDosp(cfg, window, deps)
	case models.SpiderInstar:
		return spiders.NewInstar(cfg, window, deps)
	case models.SpiderDiof:
		return spiders.NewDiof(cfg, window, deps)
	case models.SpiderADiariosV1:
		return spiders.NewADiariosV1(cfg, window, deps)
	case models.SpiderADiariosV2:
		return spiders.NewADiariosV2(cfg, window, deps)
	case models.SpiderSigpub:
		return spiders.NewSigpub(cfg, window, deps)
	case models.SpiderDomSC:
		return spiders.NewDomSC(cfg, window, deps)
	case models.SpiderAmmMT:
		return spiders.NewAmmMT(cfg, window, deps)
	case models.SpiderDiarioBA:
		return spiders.NewDiarioBA(cfg, window, deps)
	case models.SpiderBarcoDigital:
		return spiders.NewBarcoDigital(cfg, window, deps)
	case models.SpiderSiganet:
		return spiders.NewSiganet(cfg, window, deps)
	case models.SpiderDiarioOficialBR:
		return spiders.NewDiarioOficialBR(cfg, window, deps)
	case models.SpiderModernizacao:
		return spiders.NewModernizacao(cfg, window, deps)
	case models.SpiderAplus:
		return spiders.NewAplus(cfg, window, deps)
	case models.SpiderDioenet:
		return spiders.NewDioenet(cfg, window, deps)
	case models.SpiderAdministracaoPublica:
		return spiders.NewAdministracaoPublica(cfg, window, deps)
	case models.SpiderPtio:
		return spiders.NewPtio(cfg, window, deps)
	case models.SpiderAtendeV2:
		return spiders.NewAtendeV2(cfg, window, deps)
	case models.SpiderMunicipioOnline:
		return spiders.NewMunicipioOnline(cfg, window, deps)
	default:
		return nil, models.NewUnknownSpiderError("spider type " + string(cfg.SpiderType))
	}
}
