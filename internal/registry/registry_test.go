package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/spiders"
)

func writeCityFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDirOrdersAndIndexes(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "ba_salvador.json", `{
		"id": "ba_salvador", "name": "Salvador", "territoryId": "2927408",
		"spiderType": "doem", "startDate": "2014-01-06",
		"config": {"type": "doem", "stateCityPath": "ba/salvador"}
	}`)
	writeCityFile(t, dir, "sp_batch.json", `[
		{"id": "sp_santos", "name": "Santos", "territoryId": "3548500",
		 "spiderType": "dosp",
		 "config": {"type": "dosp", "code": "123", "section": "do"}},
		{"id": "sp_campinas", "name": "Campinas", "territoryId": "3509502",
		 "spiderType": "instar",
		 "config": {"type": "instar", "baseUrl": "https://campinas.instar.com.br"}}
	]`)

	r := New(nil)
	require.NoError(t, r.LoadDir(dir))

	assert.Equal(t, 3, r.Len())

	cfg, err := r.Get("ba_salvador")
	require.NoError(t, err)
	assert.Equal(t, models.SpiderDoem, cfg.SpiderType)
	assert.Equal(t, "2927408", cfg.TerritoryID)

	byType, err := r.ByType(models.SpiderDosp)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "sp_santos", byType[0].ID)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "ba_salvador", all[0].ID, "lexicographic file order")
}

func TestLoadDirFirstDefinitionWins(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "a_first.json", `{
		"id": "ba_salvador", "name": "Salvador (DOEM)", "territoryId": "2927408",
		"spiderType": "doem",
		"config": {"type": "doem", "stateCityPath": "ba/salvador"}
	}`)
	writeCityFile(t, dir, "b_second.json", `{
		"id": "ba_salvador", "name": "Salvador (duplicate)", "territoryId": "2927408",
		"spiderType": "diof",
		"config": {"type": "diof", "website": "salvador.diof.io"}
	}`)

	r := New(nil)
	require.NoError(t, r.LoadDir(dir))

	cfg, err := r.Get("ba_salvador")
	require.NoError(t, err)
	assert.Equal(t, models.SpiderDoem, cfg.SpiderType)
	assert.Equal(t, "Salvador (DOEM)", cfg.Name)
}

func TestFallbacksShareTerritory(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "ba_salvador_doem.json", `{
		"id": "ba_salvador_doem", "name": "Salvador", "territoryId": "2927408",
		"spiderType": "doem",
		"config": {"type": "doem", "stateCityPath": "ba/salvador"}
	}`)
	writeCityFile(t, dir, "ba_salvador_diof.json", `{
		"id": "ba_salvador_diof", "name": "Salvador (legacy)", "territoryId": "2927408",
		"spiderType": "diof",
		"config": {"type": "diof", "website": "salvador.diof.io"}
	}`)

	r := New(nil)
	require.NoError(t, r.LoadDir(dir))

	fallbacks := r.Fallbacks("2927408", "ba_salvador_doem")
	require.Len(t, fallbacks, 1)
	assert.Equal(t, "ba_salvador_diof", fallbacks[0].ID)

	assert.Empty(t, r.Fallbacks("9999999", "x"))
}

func TestLoadDirRejectsUnknownSpiderType(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "bad.json", `{
		"id": "bad", "territoryId": "2927408",
		"spiderType": "unheard_of",
		"config": {"type": "unheard_of"}
	}`)

	r := New(nil)
	err := r.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unheard_of")
}

func TestLoadDirRejectsMismatchedConfigType(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "mismatch.json", `{
		"id": "mismatch", "territoryId": "2927408",
		"spiderType": "doem",
		"config": {"type": "dosp", "code": "1", "section": "do"}
	}`)

	r := New(nil)
	err := r.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestGetUnknownID(t *testing.T) {
	r := New(nil)
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnknownSpider, models.KindOf(err))
}

func TestByTypeUnknown(t *testing.T) {
	r := New(nil)
	_, err := r.ByType(models.SpiderType("nope"))
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnknownSpider, models.KindOf(err))
}

func TestCreateSpiderCoversEveryType(t *testing.T) {
	window, err := models.NewDateRange(models.NewDate(2024, 3, 1), models.NewDate(2024, 3, 31))
	require.NoError(t, err)

	configs := map[models.SpiderType]models.PlatformConfig{
		models.SpiderDoem:                 &models.DoemConfig{Type: models.SpiderDoem, StateCityPath: "ba/x"},
		models.SpiderDosp:                 &models.DospConfig{Type: models.SpiderDosp, Code: "1", Section: "do"},
		models.SpiderInstar:               &models.InstarConfig{Type: models.SpiderInstar, BaseURL: "https://x"},
		models.SpiderDiof:                 &models.DiofConfig{Type: models.SpiderDiof, Website: "x.diof.io"},
		models.SpiderADiariosV1:           &models.ADiariosV1Config{Type: models.SpiderADiariosV1, BaseURL: "https://x"},
		models.SpiderADiariosV2:           &models.ADiariosV2Config{Type: models.SpiderADiariosV2, BaseURL: "https://x"},
		models.SpiderSigpub:               &models.SigpubConfig{Type: models.SpiderSigpub, CalendarURL: "https://x", EntityID: "1"},
		models.SpiderDomSC:                &models.DomSCConfig{Type: models.SpiderDomSC, EntityName: "X"},
		models.SpiderAmmMT:                &models.AmmMTConfig{Type: models.SpiderAmmMT, EntityName: "X"},
		models.SpiderDiarioBA:             &models.DiarioBAConfig{Type: models.SpiderDiarioBA, CitySlug: "x"},
		models.SpiderBarcoDigital:         &models.BarcoDigitalConfig{Type: models.SpiderBarcoDigital, BaseURL: "https://x"},
		models.SpiderSiganet:              &models.SiganetConfig{Type: models.SpiderSiganet, BaseURL: "https://x"},
		models.SpiderDiarioOficialBR:      &models.DiarioOficialBRConfig{Type: models.SpiderDiarioOficialBR, CitySlug: "x"},
		models.SpiderModernizacao:         &models.ModernizacaoConfig{Type: models.SpiderModernizacao, Domain: "x.gov.br"},
		models.SpiderAplus:                &models.AplusConfig{Type: models.SpiderAplus, BaseURL: "https://x"},
		models.SpiderDioenet:              &models.DioenetConfig{Type: models.SpiderDioenet, BaseURL: "https://x"},
		models.SpiderAdministracaoPublica: &models.AdministracaoPublicaConfig{Type: models.SpiderAdministracaoPublica, BaseURL: "https://x"},
		models.SpiderPtio:                 &models.PtioConfig{Type: models.SpiderPtio, BaseURL: "https://x"},
		models.SpiderAtendeV2:             &models.AtendeV2Config{Type: models.SpiderAtendeV2, CitySubdomain: "x"},
		models.SpiderMunicipioOnline:      &models.MunicipioOnlineConfig{Type: models.SpiderMunicipioOnline, StateUF: "se", CitySlug: "x"},
	}

	for _, spiderType := range models.SpiderTypes {
		platform, ok := configs[spiderType]
		require.True(t, ok, "missing fixture for %s", spiderType)

		cfg := models.SpiderConfig{
			ID:          "t_" + string(spiderType),
			TerritoryID: "2927408",
			SpiderType:  spiderType,
			Config:      platform,
		}
		spider, err := CreateSpider(cfg, window, spiders.Deps{})
		require.NoError(t, err, "type %s", spiderType)
		assert.NotNil(t, spider)
	}
}

func TestCreateSpiderUnknownType(t *testing.T) {
	window, _ := models.NewDateRange(models.NewDate(2024, 3, 1), models.NewDate(2024, 3, 31))
	_, err := CreateSpider(models.SpiderConfig{SpiderType: "martian"}, window, spiders.Deps{})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnknownSpider, models.KindOf(err))
}
